// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
)

// ErrorType classifies a ClientError.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// ClientError is returned by every Client method. Message is either the
// server's own error text or a short description of what failed locally.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *ClientError) Unwrap() error { return e.Cause }

// Is compares by Type so a wrapped error matches its sentinel.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type != ErrTypeUnknown && t.Type == e.Type
}

var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "ollama server unreachable"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "ollama request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// IsNotRunning reports whether the server could not be reached at all.
func IsNotRunning(err error) bool { return errors.Is(err, ErrNotRunning) }

// IsTimeout reports whether a request ran out of time or was cancelled.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsModelNotFound reports whether the server does not know the model.
func IsModelNotFound(err error) bool { return errors.Is(err, ErrModelNotFound) }

func invalid(msg string, cause error) *ClientError {
	return &ClientError{Type: ErrTypeInvalidResponse, Message: msg, Cause: cause}
}

// classifyTransport maps an http.Client.Do failure.
func classifyTransport(err error) *ClientError {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &ClientError{Type: ErrTypeTimeout, Message: ErrTimeout.Message, Cause: err}
	default:
		return &ClientError{Type: ErrTypeNotRunning, Message: ErrNotRunning.Message, Cause: err}
	}
}
