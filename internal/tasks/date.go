package tasks

import (
	"encoding/json"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Date is a due date as forms send it: a calendar day such as "2026-10-20",
// read as midnight UTC, or a full RFC 3339 timestamp. An empty string is no
// date.
type Date struct{ time.Time }

// DateOf wraps t.
func DateOf(t time.Time) *Date { return &Date{Time: t} }

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("due_date: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if d.Equal(d.Truncate(24 * time.Hour)) {
		return json.Marshal(d.UTC().Format(dayLayout))
	}
	return json.Marshal(d.Format(time.RFC3339))
}

// ParseDate reads a calendar day or an RFC 3339 timestamp. The empty string
// gives the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due_date: %q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return t, nil
}

// Ptr returns the date as a *time.Time, nil when unset.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
