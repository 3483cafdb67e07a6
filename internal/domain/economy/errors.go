package economy

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUpgradeKind      = errors.New("invalid upgrade kind")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrPrestigeThresholdNotMet = errors.New("prestige threshold not met")
	ErrLoadFailed              = errors.New("load failed")
	ErrInvalidNumberFormat     = errors.New("invalid number format")
)

// InvalidKindError reports a kind outside the fixed set.
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidUpgradeKind, e.Kind)
}

func (e *InvalidKindError) Unwrap() error { return ErrInvalidUpgradeKind }

// InsufficientFundsError is returned when a purchase costs more than the bank holds.
type InsufficientFundsError struct {
	Kind      Kind
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: %s costs %.0f, have %.0f", ErrInsufficientFunds, e.Kind, e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// PrestigeThresholdError is returned when prestige is attempted too early.
type PrestigeThresholdError struct {
	Cookies  float64
	Required float64
}

func (e *PrestigeThresholdError) Error() string {
	return fmt.Sprintf("%s: need %.0f cookies, have %.0f", ErrPrestigeThresholdNotMet, e.Required, e.Cookies)
}

func (e *PrestigeThresholdError) Unwrap() error { return ErrPrestigeThresholdNotMet }

// LoadFailedError wraps the reason a snapshot could not be used.
type LoadFailedError struct {
	Err error
}

func (e *LoadFailedError) Error() string {
	return fmt.Sprintf("%s: %v", ErrLoadFailed, e.Err)
}

func (e *LoadFailedError) Unwrap() []error { return []error{ErrLoadFailed, e.Err} }
