// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Package bridgerr normalizes the heterogeneous failure sources of the
// signing bridge (transport errors, agent-reported reasons, document-service
// HTTP errors) into a closed taxonomy with a side marker, so callers can tell
// "reinstall the agent" failures apart from "contact the service" ones.
package bridgerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed classification of bridge failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindAgentUnavailable
	KindCertificateRequired
	KindCertificateNotFound
	KindCertificateExpired
	KindWrongPassword
	KindSigningFailed
	KindMobileAuthFailed
	KindMobileQRInvalidFormat
	KindNetworkError
)

func (k Kind) String() string {
	switch k {
	case KindAgentUnavailable:
		return "agent_unavailable"
	case KindCertificateRequired:
		return "certificate_required"
	case KindCertificateNotFound:
		return "certificate_not_found"
	case KindCertificateExpired:
		return "certificate_expired"
	case KindWrongPassword:
		return "wrong_password"
	case KindSigningFailed:
		return "signing_failed"
	case KindMobileAuthFailed:
		return "mobile_auth_failed"
	case KindMobileQRInvalidFormat:
		return "mobile_qr_invalid_format"
	case KindNetworkError:
		return "network_error"
	default:
		return "unknown_error"
	}
}

// Source marks which side of the bridge produced the failure: this process
// and the local agent, or the remote document service.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

type Error struct {
	Kind    Kind
	Source  Source
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s (%s)", e.Kind, e.Source)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Source, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two bridge errors by Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, source Source, message string) *Error {
	return &Error{Kind: kind, Source: source, Message: message}
}

func Wrap(kind Kind, source Source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}

// KindOf extracts the classification from any error chain. Unclassified
// errors report KindUnknown while keeping their message for diagnostics.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func SourceOf(err error) Source {
	var e *Error
	if errors.As(err, &e) {
		return e.Source
	}
	return SourceLocal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// badPaddingMarker is the substring the agent emits in its free-text reason
// when the key password is wrong.
const badPaddingMarker = "BadPaddingException"

// FromAgentReason classifies an agent-reported failure reason. A wrong
// PIN/password surfaces as a BadPaddingException somewhere in the reason;
// everything else is a plain signing failure.
func FromAgentReason(reason string) *Error {
	if strings.Contains(reason, badPaddingMarker) {
		return New(KindWrongPassword, SourceLocal, "key password is incorrect")
	}
	return New(KindSigningFailed, SourceLocal, reason)
}

// Normalize guarantees a *Error at the outer boundary: already-classified
// errors pass through, anything else becomes KindUnknown with the original
// message preserved.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindUnknown, SourceLocal, err.Error(), err)
}
