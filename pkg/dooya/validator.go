// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dooya

import "fmt"

// AnomalyType represents different kinds of suspicious values
type AnomalyType int

const (
	AnomalyInvalidPosition AnomalyType = iota
	AnomalyUncalibrated
	AnomalyUnknownMotor
	AnomalyMotorError
	AnomalyUnknownFunction
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyInvalidPosition:
		return "invalid_position"
	case AnomalyUncalibrated:
		return "uncalibrated"
	case AnomalyUnknownMotor:
		return "unknown_motor_status"
	case AnomalyMotorError:
		return "motor_error"
	case AnomalyUnknownFunction:
		return "unknown_function"
	default:
		return fmt.Sprintf("anomaly(%d)", int(a))
	}
}

// ValidationError represents a value that decoded fine but makes no sense
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateState checks a decoded state for anomalies.
// Returns a slice of validation errors (empty if the state is plausible).
func ValidateState(s DeviceState) []ValidationError {
	errors := []ValidationError{}

	if !s.Position.Calibrated() {
		errors = append(errors, ValidationError{
			Type:    AnomalyUncalibrated,
			Message: "Stroke not set (position 0xFF); run a full open and close cycle",
			Details: map[string]interface{}{"position": uint8(s.Position)},
		})
	} else if s.Position > PositionMax {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidPosition,
			Message: fmt.Sprintf("Invalid position=%d (max %d)", uint8(s.Position), PositionMax),
			Details: map[string]interface{}{"position": uint8(s.Position), "max": PositionMax},
		})
	}

	switch s.Motor {
	case MotorStopped, MotorRunning:
	case MotorError:
		errors = append(errors, ValidationError{
			Type:    AnomalyMotorError,
			Message: "Motor reports an error condition",
			Details: map[string]interface{}{"motor": uint8(s.Motor)},
		})
	default:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownMotor,
			Message: fmt.Sprintf("Unknown motor status 0x%02X", uint8(s.Motor)),
			Details: map[string]interface{}{"motor": uint8(s.Motor)},
		})
	}

	return errors
}

// ValidateFrame checks a decoded frame seen on the bus
func ValidateFrame(f Frame) []ValidationError {
	if f.function.Valid() {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyUnknownFunction,
		Message: fmt.Sprintf("Unknown function code 0x%02X", uint8(f.function)),
		Details: map[string]interface{}{"function": uint8(f.function)},
	}}
}
