/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"fmt"

	"github.com/pkg/errors"
)

// HTTPError is the typed error a handler raises to produce a specific
// status code. The default error page renderer and the error-handler
// fallback logic both key off Status.
type HTTPError struct {
	Status  int
	Message string
	cause   error
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, StatusText(e.Status))
}

// Unwrap/Cause let github.com/pkg/errors helpers (errors.Is, errors.Cause)
// see through to whatever produced this HTTPError, when set via NewHTTPErrorFrom.
func (e *HTTPError) Unwrap() error { return e.cause }
func (e *HTTPError) Cause() error  { return e.cause }

// NewHTTPError builds a bare typed HTTP error for status.
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

// NewHTTPErrorFrom wraps cause as the typed error for status, preserving
// it for errors.Cause/errors.Unwrap.
func NewHTTPErrorFrom(status int, cause error) *HTTPError {
	return &HTTPError{Status: status, Message: cause.Error(), cause: cause}
}

// Sentinel errors of the resolver and of hook registration.
var (
	// ErrInternalResolverBug is the resolver's "non-skippable hook
	// returned no response" fatal condition (§4.F item 3).
	ErrInternalResolverBug = errors.New("hookhttp: non-skippable hook returned no response")

	// ErrDuplicateHook is raised by HookSet.Insert when two non-skippable
	// hooks compare equal in specificity and also match on every field.
	ErrDuplicateHook = errors.New("hookhttp: duplicate hook registration")
)

// badRequestError marks a parse failure that must produce 400 Bad Request.
type badRequestError string

func (e badRequestError) Error() string { return "bad request: " + string(e) }

// lengthRequiredError marks a parse failure that must produce 411 Length Required.
type lengthRequiredError string

func (e lengthRequiredError) Error() string { return "length required: " + string(e) }
