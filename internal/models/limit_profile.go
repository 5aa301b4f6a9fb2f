package models

// LimitCeiling holds the three caps for one transaction type, in minor units.
type LimitCeiling struct {
	MaxSingle  int64
	MaxDaily   int64
	MaxMonthly int64
}

// LimitProfile carries the per-account-type ceilings used by the limit
// evaluator. It is read-only configuration owned by the profile collaborator;
// this engine never writes it.
type LimitProfile struct {
	AccountType string
	Ceilings    map[string]LimitCeiling
}

// CeilingFor returns the ceiling for a transaction type, falling back to the
// transfer ceiling for the internal transfer legs.
func (p *LimitProfile) CeilingFor(txType string) (LimitCeiling, bool) {
	if c, ok := p.Ceilings[txType]; ok {
		return c, true
	}
	if txType == TransactionTypeTransferOut || txType == TransactionTypeTransferIn {
		c, ok := p.Ceilings["transfer"]
		return c, ok
	}
	return LimitCeiling{}, false
}
