/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package media

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a media acquisition failure so callers can choose
// user-facing guidance without string matching.
type ErrorKind string

const (
	// ErrPermissionDenied means the user or system refused microphone access
	ErrPermissionDenied ErrorKind = "permission_denied"
	// ErrDeviceNotFound means no capture device is present
	ErrDeviceNotFound ErrorKind = "device_not_found"
	// ErrDeviceBusy means another application holds the capture device
	ErrDeviceBusy ErrorKind = "device_busy"
	// ErrUnsupported means the requested constraints cannot be satisfied
	ErrUnsupported ErrorKind = "unsupported"
	// ErrUnknown covers everything else
	ErrUnknown ErrorKind = "unknown"
)

// Error is a classified media acquisition error
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("media error (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("media error (%s)", e.Kind)
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified media error
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the classification of err, or ErrUnknown if err is not a
// media error.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ErrUnknown
}
