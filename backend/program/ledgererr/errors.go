package ledgererr

import (
	"errors"
	"fmt"
)

// Class groups instruction failures by what went wrong.
type Class int

const (
	ClassUnknown Class = iota
	// ClassIdentity: an account is missing, already present, or not the derived one.
	ClassIdentity
	// ClassAuthorization: a signer does not hold the required role.
	ClassAuthorization
	// ClassState: the record is in the wrong lifecycle state.
	ClassState
	// ClassArithmetic: overflow or insufficient balance.
	ClassArithmetic
	// ClassEncoding: payload or record bytes do not match the schema.
	ClassEncoding
)

func (c Class) String() string {
	switch c {
	case ClassIdentity:
		return "identity"
	case ClassAuthorization:
		return "authorization"
	case ClassState:
		return "state"
	case ClassArithmetic:
		return "arithmetic"
	case ClassEncoding:
		return "encoding"
	default:
		return "unknown"
	}
}

// Error is a classified ledger failure. Sentinels below are compared by identity,
// so callers wrap them with fmt.Errorf("...: %w", ErrX) to add context.
type Error struct {
	Class Class
	Code  string
	msg   string
}

func newError(class Class, code, msg string) *Error {
	return &Error{Class: class, Code: code, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrUninitializedAccount      = newError(ClassIdentity, "uninitialized_account", "account not initialized")
	ErrAccountAlreadyInitialized = newError(ClassIdentity, "account_already_initialized", "account already initialized")
	ErrInvalidSeeds              = newError(ClassIdentity, "invalid_seeds", "account does not match derived address")
	ErrAccountMismatch           = newError(ClassIdentity, "account_mismatch", "account does not match record reference")
	ErrNotEnoughAccountKeys      = newError(ClassIdentity, "not_enough_account_keys", "not enough account keys")

	ErrMissingSignature = newError(ClassAuthorization, "missing_signature", "missing required signature")
	ErrIllegalOwner     = newError(ClassAuthorization, "illegal_owner", "account owner mismatch")
	ErrReadonlyAccount  = newError(ClassAuthorization, "readonly_account", "account is not writable")

	ErrSessionSettled     = newError(ClassState, "session_settled", "session already settled")
	ErrListingEmpty       = newError(ClassState, "listing_empty", "nothing available in listing")
	ErrInsufficientListed = newError(ClassState, "insufficient_listed", "listing has fewer points than requested")

	ErrArithmeticOverflow = newError(ClassArithmetic, "arithmetic_overflow", "arithmetic overflow")
	ErrInsufficientFunds  = newError(ClassArithmetic, "insufficient_funds", "insufficient funds")
	ErrInsufficientPoints = newError(ClassArithmetic, "insufficient_points", "insufficient points")
	ErrUnbalanced         = newError(ClassArithmetic, "unbalanced", "lamports not conserved")

	ErrInvalidInstructionData = newError(ClassEncoding, "invalid_instruction_data", "invalid instruction data")
	ErrInvalidArgument        = newError(ClassEncoding, "invalid_argument", "invalid argument")
	ErrMalformedAccount       = newError(ClassEncoding, "malformed_account", "malformed account data")
	ErrWrongAccountKind       = newError(ClassEncoding, "wrong_account_kind", "wrong account kind")
)

// ClassOf returns the class of the first *Error in err's chain.
func ClassOf(err error) Class {
	var le *Error
	if errors.As(err, &le) {
		return le.Class
	}
	return ClassUnknown
}

// CodeOf returns the stable code of the first *Error in err's chain, or "internal".
func CodeOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return "internal"
}

// Wrap annotates a sentinel with a formatted detail.
func Wrap(sentinel *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
