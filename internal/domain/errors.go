package domain

import "errors"

// ErrorClass agrupa los errores del engine por su efecto sobre la operación.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassValidation
	ClassAuthorization
	ClassStateConflict
	ClassTemporal
	ClassExecutionLocal
	ClassResourceCeiling
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassAuthorization:
		return "authorization"
	case ClassStateConflict:
		return "state_conflict"
	case ClassTemporal:
		return "temporal"
	case ClassExecutionLocal:
		return "execution_local"
	case ClassResourceCeiling:
		return "resource_ceiling"
	default:
		return "unknown"
	}
}

// Error es un error de dominio con código estable y clase.
type Error struct {
	Code  string
	Class ErrorClass
}

func (e *Error) Error() string { return e.Code }

func newError(code string, class ErrorClass) *Error {
	return &Error{Code: code, Class: class}
}

var (
	ErrInvalidConfidence = newError("InvalidConfidence", ClassValidation)
	ErrInvalidTickRange  = newError("InvalidTickRange", ClassValidation)
	ErrInvalidPoolKey    = newError("InvalidPoolKey", ClassValidation)
	ErrInvalidAmount     = newError("InvalidAmount", ClassValidation)
	ErrInvalidParameter  = newError("InvalidParameter", ClassValidation)
	ErrZeroLiquidity     = newError("ZeroLiquidity", ClassValidation)

	ErrUnauthorized     = newError("Unauthorized", ClassAuthorization)
	ErrNotPositionOwner = newError("NotPositionOwner", ClassAuthorization)
	ErrNotOrderOwner    = newError("NotOrderOwner", ClassAuthorization)

	ErrPositionNotFound       = newError("PositionNotFound", ClassStateConflict)
	ErrPositionNotFoundOnBurn = newError("PositionNotFoundOnBurn", ClassStateConflict)
	ErrPositionExists         = newError("PositionExists", ClassStateConflict)
	ErrNotAutoRebalance       = newError("NotAutoRebalance", ClassStateConflict)
	ErrOrderNotFound          = newError("OrderNotFound", ClassStateConflict)
	ErrOrderNotPending        = newError("OrderNotPending", ClassStateConflict)
	ErrOrderNotExecuted       = newError("OrderNotExecuted", ClassStateConflict)
	ErrAlreadyClaimed         = newError("AlreadyClaimed", ClassStateConflict)
	ErrNothingToClaim         = newError("NothingToClaim", ClassStateConflict)
	ErrInsufficientBalance    = newError("InsufficientBalance", ClassStateConflict)
	ErrInsufficientLiquidity  = newError("InsufficientLiquidity", ClassStateConflict)
	ErrPaused                 = newError("Paused", ClassStateConflict)

	ErrFutureTimestamp             = newError("FutureTimestamp", ClassTemporal)
	ErrStaleSignal                 = newError("StaleSignal", ClassTemporal)
	ErrRebalanceCooldownNotElapsed = newError("RebalanceCooldownNotElapsed", ClassTemporal)

	ErrInsufficientAmountOut = newError("InsufficientAmountOut", ClassExecutionLocal)

	ErrFeeTooHigh = newError("FeeTooHigh", ClassResourceCeiling)
)

// ClassOf devuelve la clase del primer error de dominio en la cadena.
func ClassOf(err error) ErrorClass {
	var de *Error
	if errors.As(err, &de) {
		return de.Class
	}
	return ClassUnknown
}
