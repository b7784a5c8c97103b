package faults

import (
	"context"
	"io"
	"io/fs"
	"net"
	"os"

	"github.com/cockroachdb/errors"
)

// Class is the handling class of a job failure.
type Class int

const (
	// Unexpected failures are surfaced without retry.
	Unexpected Class = iota
	// Validation failures mean the caller input violated a precondition.
	Validation
	// Transient failures are filesystem or network faults, retried once.
	Transient
)

func (c Class) String() string {
	switch c {
	case Validation:
		return "validation"
	case Transient:
		return "transient"
	default:
		return "unexpected"
	}
}

var (
	errValidation = errors.New("validation error")
	errTransient  = errors.New("transient i/o error")
	errPermanent  = errors.New("permanent error")
)

// Validationf returns a caller-facing validation error. Its message is
// exactly the formatted text so it can be sent back as response details.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errValidation)
}

// MarkTransient flags err as recoverable by a single retry.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, errTransient)
}

// MarkPermanent flags err as not worth retrying even when it wraps an
// I/O fault, for operations that cannot be repeated cleanly.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, errPermanent)
}

// IsValidation reports whether err was built by Validationf.
func IsValidation(err error) bool {
	return errors.Is(err, errValidation)
}

// IsTransient reports whether err is an I/O-class fault: explicitly marked,
// a filesystem error, a network error, or a truncated stream.
func IsTransient(err error) bool {
	if err == nil || IsValidation(err) || errors.Is(err, errPermanent) {
		return false
	}
	if errors.Is(err, errTransient) {
		return true
	}
	// A cancelled job is never worth a second attempt.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify maps err onto its handling class.
func Classify(err error) Class {
	switch {
	case IsValidation(err):
		return Validation
	case IsTransient(err):
		return Transient
	default:
		return Unexpected
	}
}

// Details renders err for the response envelope.
func Details(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
