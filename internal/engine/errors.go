package engine

import "errors"

// Falhas de validação do próprio motor. As dos colaboradores moram nos
// pacotes deles (treasury.ErrInsufficientLiquidity, random.ErrRevealMismatch,
// ledger.ErrAlreadyFinalized, refund.ErrNotYetEligible, ...).
var (
	ErrInvalidArgument = errors.New("invalid bet parameters")
	ErrUnauthorized    = errors.New("caller not authorized")
)
