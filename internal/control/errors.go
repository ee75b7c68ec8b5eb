package control

import "errors"

// Domain errors for the control core.
var (
	// ErrShapeMismatch indicates batched operands with incompatible dimensions.
	ErrShapeMismatch = errors.New("control: shape mismatch")

	// ErrBadParams indicates invalid construction parameters.
	ErrBadParams = errors.New("control: invalid parameters")

	// ErrUnsupportedMode indicates an unknown control mode selection.
	ErrUnsupportedMode = errors.New("control: unsupported control mode")
)
