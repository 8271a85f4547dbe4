package engine

import "errors"

// Error kinds returned by the pricing, vesting and lifecycle packages.
// Every operation fails with exactly one of these so that callers can
// tell "try again later" apart from "your price moved" apart from a
// numeric bug. Nothing is retried internally.
var (
	ErrInvalidConfiguration = errors.New("invalid auction configuration")
	ErrStateViolation       = errors.New("operation not legal in current auction state")
	ErrArithmeticOverflow   = errors.New("arithmetic overflow")
	ErrDivisionByZero       = errors.New("division by zero")
	ErrSlippageExceeded     = errors.New("purchase price out of slippage tolerance")
	ErrCapacityExceeded     = errors.New("purchase would exceed total sale amount")
	ErrAuthorizationDenied  = errors.New("caller is not the auction owner")
)
