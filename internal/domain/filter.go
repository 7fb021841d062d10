package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the civil date format accepted for date range bounds.
const DateLayout = "2006-01-02"

// MinRisk is the lower bound selector for the effective risk score.
type MinRisk int

const (
	MinRiskAll    MinRisk = 0
	MinRiskMedium MinRisk = 4
	MinRiskHigh   MinRisk = 7
)

// ParseMinRisk accepts only the selectable thresholds 0, 4 and 7.
func ParseMinRisk(raw string) (MinRisk, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MinRiskAll, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("min risk %q: %w", raw, err)
	}
	switch MinRisk(v) {
	case MinRiskAll, MinRiskMedium, MinRiskHigh:
		return MinRisk(v), nil
	}
	return 0, fmt.Errorf("min risk %d is not one of 0, 4, 7", v)
}

// SortOrder selects the ordering of the result set.
type SortOrder string

const (
	SortByDate SortOrder = "date"
	SortByRisk SortOrder = "risk"
)

// ParseSortOrder accepts "date" (default when empty) or "risk".
func ParseSortOrder(raw string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SortByDate:
		return SortByDate, nil
	case SortByRisk:
		return SortByRisk, nil
	}
	return "", fmt.Errorf("sort order %q is not one of date, risk", raw)
}

// DateRange bounds collection time by calendar day; both ends are optional.
// Only the year, month and day of each bound are significant.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ParseDate parses a YYYY-MM-DD bound; an empty string yields nil.
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("date %q: %w", raw, err)
	}
	return &t, nil
}

// FilterState holds the user-controlled parameters of the current query.
type FilterState struct {
	MinRisk   MinRisk   `json:"minRisk"`
	SortOrder SortOrder `json:"sortOrder"`
	DateRange DateRange `json:"dateRange"`
}

// DefaultFilter is the session-start filter: all risks, newest first, no dates.
func DefaultFilter() FilterState {
	return FilterState{MinRisk: MinRiskAll, SortOrder: SortByDate}
}

// Validate rejects values outside the selectable enums.
func (f FilterState) Validate() error {
	switch f.MinRisk {
	case MinRiskAll, MinRiskMedium, MinRiskHigh:
	default:
		return fmt.Errorf("min risk %d is not one of 0, 4, 7", f.MinRisk)
	}
	switch f.SortOrder {
	case SortByDate, SortByRisk:
	default:
		return fmt.Errorf("sort order %q is not one of date, risk", f.SortOrder)
	}
	return nil
}

// FormatDate renders an optional bound for form fields.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
