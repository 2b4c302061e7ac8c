package service

import "errors"

// Service-level failure classes. Handlers map these onto HTTP statuses;
// anything else is a storage fault that has already been rolled back.
var (
	// ErrValidation marks a malformed or incomplete payload.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden marks a state-machine or role violation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState marks a survey whose lifecycle state is outside the
	// known enumeration. Configuration fault, not a caller error.
	ErrInvalidState = errors.New("invalid survey state")

	// ErrOTPInvalid marks a wrong or already consumed one-time passcode.
	ErrOTPInvalid = errors.New("invalid or used otp")

	// ErrOTPExpired marks a passcode past its validity window.
	ErrOTPExpired = errors.New("otp expired")

	// ErrDelivery marks a failed outbound OTP delivery.
	ErrDelivery = errors.New("otp delivery failed")
)
