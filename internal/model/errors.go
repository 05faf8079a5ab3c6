package model

import "errors"

var (
	ErrInvalidWire           = errors.New("invalid wire")
	ErrInvalidShape          = errors.New("invalid parameter shape")
	ErrInvalidConfig         = errors.New("invalid config")
	ErrNonDifferentiableLoss = errors.New("loss is not differentiable")
	ErrNotFound              = errors.New("not found")
)
