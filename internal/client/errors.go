package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated means the session has no usable token or the server
	// rejected it
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidTransition means the item's status does not allow the action
	ErrInvalidTransition = errors.New("action not allowed for the item's current status")
	ErrActionInFlight    = errors.New("an action on this item is already in progress")
	ErrEmptyReason       = errors.New("a return reason is required")
	ErrEmptyCart         = errors.New("cart is empty")
)

// ActionError is a non-success response. Message is the server's own text
// when it sent one.
type ActionError struct {
	Status  int
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is match 401 and 409 responses against the taxonomy
func (e *ActionError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusConflict:
		return ErrInvalidTransition
	default:
		return nil
	}
}

// NetworkError wraps a transport failure; no response was received
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrLoginRequired is returned when a guest starts a flow that needs an
// account. ReturnPath is where the login should lead back to.
type ErrLoginRequired struct {
	ReturnPath string
}

func (e *ErrLoginRequired) Error() string {
	return "login required to continue to " + e.ReturnPath
}

func (e *ErrLoginRequired) Unwrap() error {
	return ErrUnauthenticated
}
