package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Settlement statuses reported by the status poll.
const (
	SettlementSuccessful = "successful"
	SettlementFailed     = "failed"
	SettlementPending    = "pending"
)

// Request is the outbound payment instruction. Amounts are decimal in major
// units; references must be 8-36 characters and unique per attempt.
type Request struct {
	AccountNo   string          `json:"account_no"`
	Reference   string          `json:"reference"`
	MSISDN      string          `json:"msisdn"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Operator    string          `json:"operator,omitempty"`
}

// Response is the synchronous gateway acknowledgement. Success only means
// the instruction was accepted; settlement is confirmed asynchronously.
type Response struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	InternalReference string `json:"internal_reference,omitempty"`
}

// StatusResponse is the reconciliation poll result.
type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client talks the mobile-money protocol. RequestPayment pulls funds from a
// subscriber (deposits); SendPayment pushes funds out (withdrawals).
type Client interface {
	RequestPayment(ctx context.Context, req Request) (*Response, error)
	SendPayment(ctx context.Context, req Request) (*Response, error)
	CheckStatus(ctx context.Context, internalReference string) (*StatusResponse, error)
}
