package engine

import "errors"

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrSelfTransfer       = errors.New("cannot transfer to self")
	ErrRiskBlocked        = errors.New("transaction blocked by risk policy")
	ErrDuplicateReference = errors.New("duplicate gateway reference")
	ErrGatewayRejected    = errors.New("payment rejected by gateway")
	ErrGatewayConfig      = errors.New("payment service misconfigured")
	ErrInvalidState       = errors.New("transaction is not in a valid state for this operation")
	ErrInvalidStepUpCode  = errors.New("invalid verification code")
	ErrStepUpExpired      = errors.New("verification code expired")
)
