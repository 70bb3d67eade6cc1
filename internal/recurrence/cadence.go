package recurrence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dukerupert/choresync/internal/model"
)

var unitAbbrev = map[model.CadenceUnit]string{
	model.CadenceDays:   "d",
	model.CadenceWeeks:  "w",
	model.CadenceMonths: "m",
}

var unitFromAbbrev = map[string]model.CadenceUnit{
	"d": model.CadenceDays,
	"w": model.CadenceWeeks,
	"m": model.CadenceMonths,
}

// Cadence is a repeat interval: Value units of Unit.
type Cadence struct {
	Unit  model.CadenceUnit
	Value int
}

// Of returns the cadence of a template.
func Of(t *model.TaskTemplate) Cadence {
	return Cadence{Unit: model.ParseCadenceUnit(string(t.CadenceUnit)), Value: t.CadenceValue}
}

// Valid reports whether the cadence can be expanded.
func (c Cadence) Valid() bool {
	return c.Value > 0
}

// Parse parses a compact cadence like "2w", "3d" or "1m". A bare number is
// weeks.
func Parse(s string) (Cadence, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Cadence{}, fmt.Errorf("empty cadence")
	}

	unit := model.CadenceWeeks
	num := s
	if u, ok := unitFromAbbrev[s[len(s)-1:]]; ok {
		unit = u
		num = s[:len(s)-1]
	}

	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return Cadence{}, fmt.Errorf("invalid cadence: %q", s)
	}
	return Cadence{Unit: unit, Value: n}, nil
}

// String serializes the cadence back to its compact form.
func (c Cadence) String() string {
	abbrev, ok := unitAbbrev[c.Unit]
	if !ok {
		abbrev = "w"
	}
	return strconv.Itoa(c.Value) + abbrev
}

// Describe returns a human-readable description of the cadence.
func (c Cadence) Describe() string {
	switch c.Unit {
	case model.CadenceDays:
		if c.Value > 1 {
			return fmt.Sprintf("Repeats every %d days", c.Value)
		}
		return "Repeats daily"
	case model.CadenceMonths:
		if c.Value > 1 {
			return fmt.Sprintf("Repeats every %d months", c.Value)
		}
		return "Repeats monthly"
	default:
		if c.Value > 1 {
			return fmt.Sprintf("Repeats every %d weeks", c.Value)
		}
		return "Repeats weekly"
	}
}
