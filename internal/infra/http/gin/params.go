package ginserver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentacar/internal/domain/shared/period"
)

const headerIdempotencyKey = "Idempotency-Key"

// Paging limits applied to list endpoints.
type PageLimits struct {
	Default int
	Max     int
}

func (l PageLimits) resolve(raw string) (int, error) {
	size, err := optionalInt(raw)
	if err != nil {
		return 0, fmt.Errorf("page_size: %w", err)
	}
	if size == nil || *size <= 0 {
		if l.Default > 0 {
			return l.Default, nil
		}
		return 0, nil
	}
	if l.Max > 0 && *size > l.Max {
		return l.Max, nil
	}
	return *size, nil
}

// parseDate accepts YYYY-MM-DD or RFC3339 and keeps the UTC calendar day.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(period.DateLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return period.Date(t), true
	}
	return time.Time{}, false
}

func requiredDate(name, raw string) (time.Time, error) {
	t, ok := parseDate(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("%s must be a date in %s format", name, period.DateLayout)
	}
	return t, nil
}

func optionalDate(name, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := requiredDate(name, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer", raw)
	}
	return &v, nil
}

func optionalDecimal(name, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a decimal", name, raw)
	}
	return &d, nil
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func parsePage(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// intRange reads name_min and name_max style pairs.
func intRange(minRaw, maxRaw string) (*int, *int, error) {
	lo, err := optionalInt(minRaw)
	if err != nil {
		return nil, nil, err
	}
	hi, err := optionalInt(maxRaw)
	if err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}
