package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

// ParseCounts validates raw submitted values. Keys must be category names;
// values may be integers, integral JSON numbers or numeric strings, and must
// not be negative. Categories absent from raw are absent from the result.
func ParseCounts(raw map[string]any) (Counts, error) {
	errs := apperrors.NewValidationErrors()
	counts := make(Counts, len(raw))

	for field, value := range raw {
		if !IsCategory(field) {
			errs.Add(field, "Unknown ticket category")
			continue
		}
		n, ok := coerceCount(value)
		if !ok {
			errs.Add(field, "Must be a non-negative integer")
			continue
		}
		counts[field] = n
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return counts, nil
}

// MaxCount bounds a single category count whatever form it was submitted in.
const MaxCount = math.MaxInt32

func coerceCount(v any) (int, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || x < 0 || x > MaxCount {
			return 0, false
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, false
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}

	if n < 0 || n > MaxCount {
		return 0, false
	}
	return int(n), true
}

// ResolveTargetDate returns the date a submission applies to. An empty
// requested date means today in loc. Dates after today are rejected.
func ResolveTargetDate(requested string, now time.Time, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := FormatDate(now.In(loc))
	if strings.TrimSpace(requested) == "" {
		return today, nil
	}

	t, ok := ParseDate(requested)
	if !ok {
		errs := apperrors.NewValidationErrors()
		errs.Add("date", apperrors.ErrInvalidDate.Error())
		return "", errs
	}
	date := FormatDate(t)
	if date > today {
		errs := apperrors.NewValidationErrors()
		errs.Add("date", "Date cannot be in the future")
		return "", errs
	}
	return date, nil
}
