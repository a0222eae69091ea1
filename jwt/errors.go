package jwt

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired matches a *VerifyError of KindExpired.
	ErrExpired = errors.New("token expired")
	// ErrInvalidSignature matches a *VerifyError of KindInvalidSignature.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrMalformed matches a *VerifyError of KindMalformed.
	ErrMalformed = errors.New("token malformed")

	errMissingUserID = errors.New("token has no user id")
)

// Kind tags a verification failure.
type Kind uint8

const (
	KindMalformed Kind = iota
	KindExpired
	KindInvalidSignature
)

func (k Kind) String() string {
	switch k {
	case KindExpired:
		return "expired"
	case KindInvalidSignature:
		return "invalid_signature"
	default:
		return "malformed"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindExpired:
		return ErrExpired
	case KindInvalidSignature:
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}

// VerifyError is the only error type returned by Codec.Verify.
type VerifyError struct {
	Kind Kind
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return e.Kind.sentinel().Error() + ": " + e.Err.Error()
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *VerifyError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf extracts the failure kind from err. The boolean is false when err is
// not a *VerifyError.
func KindOf(err error) (Kind, bool) {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return KindMalformed, false
}

// classify folds the parser's error tree into one of the three kinds. The
// parser checks the signature before any claim, so an expiry error implies the
// signature matched.
func classify(err error) *VerifyError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerifyError{Kind: KindInvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired) && !hasOtherClaimFailure(err):
		return &VerifyError{Kind: KindExpired, Err: err}
	default:
		return &VerifyError{Kind: KindMalformed, Err: err}
	}
}

func hasOtherClaimFailure(err error) bool {
	for _, target := range []error{
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenRequiredClaimMissing,
		jwt.ErrTokenMalformed,
		errMissingUserID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
