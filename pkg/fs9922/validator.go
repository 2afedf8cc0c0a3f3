// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyInvalidValue AnomalyType = iota
	AnomalyInvalidDecimal
	AnomalyBargraphRange
	AnomalyUnknownUnit
	AnomalyUnknownPrefix
	AnomalyPowerConflict
	AnomalyMinMaxConflict
)

// AnomalyTypes lists every anomaly type in declaration order
var AnomalyTypes = []AnomalyType{
	AnomalyInvalidValue,
	AnomalyInvalidDecimal,
	AnomalyBargraphRange,
	AnomalyUnknownUnit,
	AnomalyUnknownPrefix,
	AnomalyPowerConflict,
	AnomalyMinMaxConflict,
}

// String returns a short identifier for the anomaly type
func (a AnomalyType) String() string {
	switch a {
	case AnomalyInvalidValue:
		return "invalid_value"
	case AnomalyInvalidDecimal:
		return "invalid_decimal"
	case AnomalyBargraphRange:
		return "bargraph_range"
	case AnomalyUnknownUnit:
		return "unknown_unit"
	case AnomalyUnknownPrefix:
		return "unknown_prefix"
	case AnomalyPowerConflict:
		return "power_conflict"
	case AnomalyMinMaxConflict:
		return "minmax_conflict"
	default:
		return "unknown"
	}
}

// ValidationError represents a frame content anomaly. Decoding tolerates
// all of these; they only indicate a frame worth a second look.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Validate checks a frame for content the decoder silently tolerates.
// Returns a slice of validation errors (empty if the frame is clean)
func Validate(f Frame) []ValidationError {
	fields := f.Fields()
	errors := []ValidationError{}

	if !fields.Overflow() {
		if text := fields.ValueText(); !validValueText(text) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Non-numeric value field %q", text),
				Details: map[string]interface{}{"text": text},
			})
		}
	}

	switch fields.Decimal {
	case DecimalNone, DecimalMilli, DecimalCenti, DecimalDeci:
	default:
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidDecimal,
			Message: fmt.Sprintf("Unknown decimal code 0x%02X", fields.Decimal),
			Details: map[string]interface{}{"code": fields.Decimal},
		})
	}

	if mag := fields.Bargraph & bargraphMagnitude; mag > BargraphMax {
		errors = append(errors, ValidationError{
			Type:    AnomalyBargraphRange,
			Message: fmt.Sprintf("Bargraph magnitude=%d (max %d)", mag, BargraphMax),
			Details: map[string]interface{}{"magnitude": mag, "max": BargraphMax},
		})
	}

	if !fields.Status9.Percent() && fields.UnitCode != 0 && fields.Unit() == UnitNone {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownUnit,
			Message: fmt.Sprintf("Unknown unit selector 0x%02X", fields.UnitCode),
			Details: map[string]interface{}{"selector": fields.UnitCode},
		})
	}

	if sel := uint8(fields.Status9) & 0xF0; !fields.Status8.Nano() && sel != 0 && fields.Prefix() == PrefixNone {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownPrefix,
			Message: fmt.Sprintf("Unknown prefix selector 0x%02X", uint8(fields.Status9)),
			Details: map[string]interface{}{"selector": uint8(fields.Status9)},
		})
	}

	if fields.Status7.AC() && fields.Status7.DC() {
		errors = append(errors, ValidationError{
			Type:    AnomalyPowerConflict,
			Message: "AC and DC indicators both set",
			Details: map[string]interface{}{"status7": uint8(fields.Status7)},
		})
	}

	if fields.Status8.Min() && fields.Status8.Max() {
		errors = append(errors, ValidationError{
			Type:    AnomalyMinMaxConflict,
			Message: "MIN and MAX indicators both set",
			Details: map[string]interface{}{"status8": uint8(fields.Status8)},
		})
	}

	return errors
}
