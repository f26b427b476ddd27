package flow

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// dateLayout is the only input format the bot accepts for dates.
const dateLayout = "02.01.2006"

var (
	errDateFormat  = errors.New("unparseable date")
	errDatePast    = errors.New("date is not in the future")
	errDateTooFar  = errors.New("date is too far ahead")
	errEndNotAfter = errors.New("end date is not after the start date")
	errEndTooFar   = errors.New("end date is too far after the start date")
)

// parseDate reads a dd.mm.yyyy date as a UTC calendar date.
func parseDate(text string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, errDateFormat
	}
	return t.UTC(), nil
}

// validateStartDate requires the start to be strictly after today and at most
// MaxStartDaysAhead days out.
func validateStartDate(date, today time.Time) error {
	if !date.After(today) {
		return errDatePast
	}
	if date.After(today.AddDate(0, 0, santa.MaxStartDaysAhead)) {
		return errDateTooFar
	}
	return nil
}

// validateEndDate requires the end to be strictly after the start and at most
// MaxDurationMonths months later.
func validateEndDate(end, start time.Time) error {
	if !end.After(start) {
		return errEndNotAfter
	}
	if end.After(start.AddDate(0, santa.MaxDurationMonths, 0)) {
		return errEndTooFar
	}
	return nil
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeText neutralizes markup-significant characters in free text before it
// is stored, so user input cannot inject into the rich-text output format.
func escapeText(s string) string {
	return markupEscaper.Replace(s)
}

// validName trims the input and checks it is non-blank and within limit
// (counted in runes, before escaping).
func validName(text string, limit int) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > limit {
		return "", false
	}
	return trimmed, true
}
