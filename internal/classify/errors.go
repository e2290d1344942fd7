package classify

import (
	"errors"
	"fmt"

	"github.com/lcalzada-xor/phishguard/internal/model"
)

var (
	// ErrNetworkFailure covers requests that did not complete and bodies
	// that could not be read or parsed as JSON.
	ErrNetworkFailure = errors.New("classification request failed")
	// ErrMalformedResponse is returned when the body is JSON but lacks a
	// valid prob_phishing or label.
	ErrMalformedResponse = model.ErrMalformed
	// ErrEmptyURL is returned before any request is sent.
	ErrEmptyURL = errors.New("url to classify is empty")
)

// Kind distinguishes failure classes.
type Kind int

const (
	KindNetwork Kind = iota
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed_response"
	default:
		return "network_failure"
	}
}

func (k Kind) sentinel() error {
	if k == KindMalformed {
		return ErrMalformedResponse
	}
	return ErrNetworkFailure
}

// Error describes a failed classification.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("classify %s: %s", e.URL, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of err and whether it is a classification error.
func KindOf(err error) (Kind, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind, true
	}
	return 0, false
}
