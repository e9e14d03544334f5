package evmcore

import "errors"

var (
	// ErrInsufficientFunds is returned when an account cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	// ErrCallDepth is returned when nested calls exceed MaxCallDepth.
	ErrCallDepth = errors.New("max call depth exceeded")
)
