package chronoquest

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/chronoquest/chronoquest/internal/backend"
)

// Common errors returned by the ChronoQuest client.
var (
	// ErrNotSignedIn is returned when no access token is available.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrTokenExpired is returned when the stored access token has expired.
	ErrTokenExpired = errors.New("access token expired")

	// ErrOffline is returned when a remote operation is attempted while offline.
	ErrOffline = errors.New("operation unavailable while offline")

	// ErrStoreClosed is returned when operating on a closed local store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrSessionClosed is returned when operating on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	ErrTaskNotFound     = errors.New("task not found")
	ErrAlreadyCompleted = errors.New("task already completed")
	ErrCountNotReached  = errors.New("task counter has not reached its target")

	ErrNoUnspentPoints  = errors.New("no unspent stat points")
	ErrInvalidStat      = errors.New("invalid stat key")
	ErrEmptyDisplayName = errors.New("display name cannot be empty")

	ErrRequirementsNotMet = errors.New("chapter requirements not met")
	ErrChapterNotFound    = errors.New("chapter not found")

	ErrInvalidSlot = errors.New("invalid equipment slot")

	// ErrInvalidOperation is returned for malformed queue operations.
	ErrInvalidOperation = errors.New("invalid pending operation")
)

// ValidationError is returned when configuration or input validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// RemoteError is returned when the hosted backend rejects an operation.
// Extractable via errors.As(). Supports Unwrap().
type RemoteError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("remote: %s failed (status %d): %s", e.Operation, e.StatusCode, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// remoteError converts a backend failure into a *RemoteError. Transport
// failures are passed through unchanged so IsNetworkError keeps working.
func remoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *backend.Error
	if errors.As(err, &be) {
		if be.Transport {
			return err
		}
		return &RemoteError{
			Operation:  op,
			StatusCode: be.StatusCode,
			Code:       be.Code,
			Message:    be.Message,
			Err:        err,
		}
	}
	return err
}

// networkMarkers are substrings that identify a connectivity failure in an
// error message. The match is case-sensitive.
var networkMarkers = []string{"Failed to fetch", "NetworkError", "fetch", "network"}

// IsNetworkError reports whether err is a retryable connectivity failure.
// Everything else (validation, constraint violation, authorization) is
// permanent.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOffline) {
		return true
	}

	var be *backend.Error
	if errors.As(err, &be) && be.Transport {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	msg := err.Error()
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		if re.Code == "23505" || re.StatusCode == 409 {
			return true
		}
	}
	var be *backend.Error
	if errors.As(err, &be) {
		if be.Code == "23505" || be.StatusCode == 409 {
			return true
		}
	}
	return strings.Contains(err.Error(), "duplicate key")
}
