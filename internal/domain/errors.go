package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated indicates the identity check answered without a user
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthError represents a failed or unreachable identity check
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError represents a failed session list, create or history call
type FetchError struct {
	Op        string // "list", "create", "history"
	SessionID string
	Err       error
}

func (e *FetchError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("fetch error: %s %s: %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("fetch error: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ChannelError represents a live channel failure
type ChannelError struct {
	Op  string // "dial", "handshake", "send", "read"
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel error: %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// APIError represents a non-2xx response from the backend
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}
