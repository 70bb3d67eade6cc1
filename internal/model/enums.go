package model

import (
	"encoding/json"
	"strings"
)

// CadenceUnit is the calendar unit a template repeats in.
type CadenceUnit string

const (
	CadenceDays   CadenceUnit = "days"
	CadenceWeeks  CadenceUnit = "weeks"
	CadenceMonths CadenceUnit = "months"
)

// ParseCadenceUnit never fails: unknown or empty input is weekly.
func ParseCadenceUnit(s string) CadenceUnit {
	switch CadenceUnit(strings.ToLower(strings.TrimSpace(s))) {
	case CadenceDays:
		return CadenceDays
	case CadenceMonths:
		return CadenceMonths
	default:
		return CadenceWeeks
	}
}

func (u *CadenceUnit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*u = ParseCadenceUnit(s)
	return nil
}

// Status is the lifecycle state of an occurrence.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSkipped   Status = "skipped"
	StatusCompleted Status = "completed"
)

// ParseStatus never fails: unknown or empty input is pending.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusSkipped:
		return StatusSkipped
	case StatusCompleted:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// IsTerminal reports whether the status ends the normal lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusSkipped || s == StatusCompleted
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}
