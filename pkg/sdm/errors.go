package sdm

import (
	"errors"
)

// InvalidMessageError is raised by the cryptographic core whenever a SUN
// message fails validation: an unsupported PICCData length, an
// unsupported UID length, a MAC mismatch, a missing counter when file
// decryption was requested, invalid LRP padding, or an encryption mode
// rejected by the RequireLRP policy.
//
// Messages are intentionally terse and generic (spec.md §7): callers
// that surface this over a network boundary must not echo Reason to an
// untrusted caller beyond the canned strings already used here.
type InvalidMessageError struct {
	Reason string
	Err    error
}

func (e *InvalidMessageError) Error() string {
	return e.Reason
}

func (e *InvalidMessageError) Unwrap() error {
	return e.Err
}

func newInvalidMessage(reason string) error {
	return &InvalidMessageError{Reason: reason}
}

func wrapInvalidMessage(reason string, err error) error {
	return &InvalidMessageError{Reason: reason, Err: err}
}

// BadRequestError is raised by the parameter layer (params.go) before any
// cryptographic work runs: malformed hex, a missing required argument,
// or a BULK blob whose length doesn't fall into a recognized class.
type BadRequestError struct {
	Reason string
	Err    error
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

func newBadRequest(reason string) error {
	return &BadRequestError{Reason: reason}
}

func wrapBadRequest(reason string, err error) error {
	return &BadRequestError{Reason: reason, Err: err}
}

// IsInvalidMessage reports whether err is (or wraps) an InvalidMessageError.
func IsInvalidMessage(err error) bool {
	var e *InvalidMessageError
	return errors.As(err, &e)
}

// IsBadRequest reports whether err is (or wraps) a BadRequestError.
func IsBadRequest(err error) bool {
	var e *BadRequestError
	return errors.As(err, &e)
}

// Canned error strings. These are the only strings that may ever cross
// a trust boundary (spec.md §7); internal causes are still attached via
// Unwrap for local diagnostics and tests.
var (
	errUnsupportedEncMode   = "Unsupported encryption mode."
	errInvalidEncModeLRP    = "Invalid encryption mode, expected LRP."
	errUnsupportedUIDLen    = "Unsupported UID length"
	errMissingUID           = "UID cannot be None."
	errBadMAC               = "Invalid message (most probably wrong signature)"
	errMissingCtrForFile    = "SDMReadCtr is required to decipher SDMENCFileData."
	errBadPadding           = "invalid padding"
	errIncorrectDynParamLen = "Incorrect length of the dynamic parameter"
	errFailedDecodeParams   = "Failed to decode parameters"
)
