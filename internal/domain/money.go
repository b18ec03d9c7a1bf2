package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits money is kept at.
const AmountScale = 2

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

var groupedAmount = regexp.MustCompile(`^\d{1,3}(,\d{3})*(\.\d*)?$`)

// ParseAmount parses a monetary value as it arrives from clients: either a
// plain number ("500", "500.5") or a display string with a currency glyph
// and thousands separators ("$1,200.00", "฿500"). The result is rounded to
// AmountScale places. Sign and range are not checked here.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})

	// "$-200.00" carries its sign after the glyph.
	if strings.HasPrefix(s, "-") {
		if negative {
			return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
		}
		negative = true
		s = s[1:]
	}

	if strings.Contains(s, ",") {
		if !groupedAmount.MatchString(s) {
			return decimal.Zero, fmt.Errorf("%w: %q has misplaced thousands separators", ErrInvalidAmount, s)
		}
		s = strings.ReplaceAll(s, ",", "")
	}

	if s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	}) {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}

	if negative {
		d = d.Neg()
	}

	return d.Round(AmountScale), nil
}

// FormatAmount renders an amount for display, prefixed with a currency
// glyph. Negative values keep the sign after the glyph ("$-200.00").
func FormatAmount(d decimal.Decimal, glyph string) string {
	return glyph + d.StringFixed(AmountScale)
}

// ParseDate parses a calendar date. Full RFC 3339 timestamps are accepted
// and truncated to their date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidDate, s)
	}

	return DateOf(t), nil
}

// DateOf drops the time of day, keeping the calendar date t has in its own
// location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
