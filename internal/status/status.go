package status

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("webhook: invalid payload signature")
	ErrTicketNotFound   = errors.New("ticket: no ticket for session id")
	ErrEventNotFound    = errors.New("event: event not found")
	ErrStoreUnavailable = errors.New("store: record store unavailable")
	ErrDuplicateTicket  = errors.New("ticket: open ticket already exists for event and user")
)

// Kind classifies a failure for the handler boundary.
type Kind int

const (
	KindInvalidSignature Kind = iota
	KindNotFound
	KindStoreUnavailable
	KindProvider
	KindInvalidInput
)

// Failure is a classified error with a caller-facing detail message. It
// replaces the loose ok/err tuples of earlier revisions: callers branch on
// Kind instead of probing a boolean.
type Failure struct {
	Kind   Kind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Detail, f.Err)
	}
	return f.Detail
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func NewFailure(kind Kind, detail string, err error) *Failure {
	return &Failure{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the Kind from err, mapping the sentinel errors when err is
// not already a Failure.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return KindInvalidSignature, true
	case errors.Is(err, ErrTicketNotFound), errors.Is(err, ErrEventNotFound):
		return KindNotFound, true
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable, true
	}
	return 0, false
}
