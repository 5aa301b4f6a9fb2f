/*
Package ledger is the single source of truth for wallet balances and the
append-only transaction log. No other component mutates a wallet balance.

Two operations move money:

	// Hold funds for a debit, or stage a credit for later settlement
	tx, err := svc.Reserve(ctx, transactionID)

	// Settle the transaction; idempotent on terminal transactions
	tx, err = svc.Finalize(ctx, transactionID, ledger.OutcomeCompleted)

Debits and credits are asymmetric on purpose: a withdrawal must hold funds
the moment it is reserved so the same balance cannot be spent twice, while a
deposit is not real until the gateway confirms it, so the credit is applied
only at Finalize.

Balance mutations on one wallet are serialized with row locks taken inside a
database transaction; wallets never interleave partial updates. The resulting
invariant, checked by the test suite, is that a wallet's balance always equals
the sum of amounts of its completed transactions.
*/
package ledger
