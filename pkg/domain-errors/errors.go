// Package domainerrors defines the error taxonomy shared by services and transports.
//
// Every failure that crosses a service boundary is an *Error carrying a stable Code.
// Callers branch on the code (HasCode) rather than on messages; transports map codes
// to status values in one place (pkg/platform/httputil).
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier.
type Code string

// Generic codes.
const (
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInvariantViolation Code = "invariant_violation"
)

// Authorization codes.
const (
	CodePlatformPaused            Code = "platform_paused"
	CodeUnauthorizedFieldAgent    Code = "unauthorized_field_agent"
	CodeUnauthorizedAdmin         Code = "unauthorized_admin"
	CodeUnauthorizedPoolAuthority Code = "unauthorized_pool_authority"
	CodeUnauthorizedBeneficiary   Code = "unauthorized_beneficiary"
)

// State-transition codes.
const (
	CodeDuplicateApproval            Code = "duplicate_approval"
	CodeMaxVerifiersReached          Code = "max_verifiers_reached"
	CodeAlreadyVerified              Code = "already_verified"
	CodeCannotVerifyRejected         Code = "cannot_verify_rejected"
	CodeBeneficiaryFlagged           Code = "beneficiary_flagged"
	CodeInvalidStatusTransition      Code = "invalid_status_transition"
	CodeBeneficiaryNotVerified       Code = "beneficiary_not_verified"
	CodeRegistrationPhaseLocked      Code = "registration_phase_locked"
	CodePoolRegistrationNotLocked    Code = "pool_registration_not_locked"
	CodePoolClosed                   Code = "pool_closed"
	CodeAlreadyRegistered            Code = "already_registered"
	CodeBeneficiaryNotRegistered     Code = "beneficiary_not_registered"
	CodeNoBeneficiaries              Code = "no_beneficiaries"
	CodeDistributionAlreadyCompleted Code = "distribution_already_completed"
	CodeDistributionExists           Code = "distribution_exists"
	CodeDistributionAlreadyClaimed   Code = "distribution_already_claimed"
	CodeDistributionAlreadyExpired   Code = "distribution_already_expired"
	CodeDistributionPartiallyClaimed Code = "distribution_partially_claimed"
	CodeDistributionNotExpired       Code = "distribution_not_expired"
	CodeTimeLockNotExpired           Code = "time_lock_not_expired"
	CodeDepositsClosed               Code = "deposits_closed"
)

// Eligibility codes.
const (
	CodeIneligibleBeneficiary Code = "ineligible_beneficiary"
	CodeDisasterMismatch      Code = "disaster_mismatch"
	CodeInvalidTokenMint      Code = "invalid_token_mint"
)

// Arithmetic codes.
const (
	CodeArithmeticOverflow    Code = "arithmetic_overflow"
	CodeArithmeticUnderflow   Code = "arithmetic_underflow"
	CodeDivisionByZero        Code = "division_by_zero"
	CodeInsufficientPoolFunds Code = "insufficient_pool_funds"
)

// Bounds codes.
const (
	CodeStringTooLong               Code = "string_too_long"
	CodeVectorTooLong               Code = "vector_too_long"
	CodeFlagReasonRequired          Code = "flag_reason_required"
	CodeInvalidFamilySize           Code = "invalid_family_size"
	CodeInvalidDamageSeverity       Code = "invalid_damage_severity"
	CodeInvalidLocation             Code = "invalid_location"
	CodeInvalidDistributionPercents Code = "invalid_distribution_percentages"
	CodeInvalidDistributionType     Code = "invalid_distribution_type"
)

// Error is a coded domain error. Err optionally carries the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports code equality so errors.Is(err, New(code, "")) matches any error with that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in err's chain has the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// MessageOf returns the message of the outermost *Error, or the error text.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
