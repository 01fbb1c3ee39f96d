// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/session"
)

// Engine errors
var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrProtocolMismatch   = errors.New("protocol mismatch")
	ErrBusy               = errors.New("transaction already in progress")
	ErrOperationFailed    = errors.New("operation failed")
	ErrSequencerUsed      = errors.New("programming sequence already used")
	ErrNotArmed           = errors.New("programming sequence not armed")
	ErrReceiveUnsupported = errors.New("transport cannot receive unsolicited frames")
)

// OperationError is returned when every attempt of an operation failed.
// It matches ErrOperationFailed and unwraps to the last attempt's error.
type OperationError struct {
	Op       string
	Address  dooya.Address
	Attempts int
	Cause    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Op, e.Address, e.Attempts, e.Cause)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// Is reports ErrOperationFailed as a match
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// ErrorKind is the category of an engine error
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTimeout
	KindChecksum
	KindMalformed
	KindMismatch
	KindConnectionLost
	KindInvalidAddress
	KindInvalidPosition
	KindInvalidCommand
	KindBusy
	KindCanceled
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindChecksum:
		return "checksum_mismatch"
	case KindMalformed:
		return "malformed_frame"
	case KindMismatch:
		return "protocol_mismatch"
	case KindConnectionLost:
		return "connection_lost"
	case KindInvalidAddress:
		return "invalid_address"
	case KindInvalidPosition:
		return "invalid_position"
	case KindInvalidCommand:
		return "invalid_command"
	case KindBusy:
		return "busy"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether an attempt failing with this kind may be retried
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindChecksum, KindMalformed, KindMismatch, KindConnectionLost:
		return true
	default:
		return false
	}
}

// Classify maps err to its kind. For an OperationError this is the kind of
// the last attempt's cause.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrInvalidPosition):
		return KindInvalidPosition
	case errors.Is(err, ErrInvalidCommand):
		return KindInvalidCommand
	case errors.Is(err, session.ErrTimeout):
		return KindTimeout
	case errors.Is(err, dooya.ErrChecksumMismatch):
		return KindChecksum
	case errors.Is(err, dooya.ErrMalformedFrame):
		return KindMalformed
	case errors.Is(err, ErrProtocolMismatch):
		return KindMismatch
	case errors.Is(err, session.ErrConnectionLost):
		return KindConnectionLost
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

func outcomeOf(k ErrorKind) dooya.Outcome {
	switch k {
	case KindTimeout:
		return dooya.OutcomeTimeout
	case KindChecksum:
		return dooya.OutcomeChecksum
	case KindMalformed:
		return dooya.OutcomeMalformed
	case KindMismatch:
		return dooya.OutcomeMismatch
	case KindConnectionLost:
		return dooya.OutcomeConnectionLost
	default:
		return dooya.OutcomeOK
	}
}
