package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DayLayout is the calendar-day key used by every history collection.
const DayLayout = "2006-01-02"

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

type dated interface {
	Day() string
}

// DayLog holds at most one entry per calendar day. Writing an entry for a day
// that already has one replaces it. It serialises as a date-ordered array.
type DayLog[T dated] map[string]T

// Put upserts entry under its day.
func (l *DayLog[T]) Put(entry T) {
	if *l == nil {
		*l = make(DayLog[T])
	}
	(*l)[entry.Day()] = entry
}

// Get returns the entry for day, if any.
func (l DayLog[T]) Get(day string) (T, bool) {
	entry, ok := l[day]
	return entry, ok
}

// Days returns the days present, oldest first.
func (l DayLog[T]) Days() []string {
	days := make([]string, 0, len(l))
	for day := range l {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// Entries returns the entries ordered by day, oldest first.
func (l DayLog[T]) Entries() []T {
	entries := make([]T, 0, len(l))
	for _, day := range l.Days() {
		entries = append(entries, l[day])
	}
	return entries
}

// Latest returns the most recent day, or "" when empty.
func (l DayLog[T]) Latest() string {
	latest := ""
	for day := range l {
		if day > latest {
			latest = day
		}
	}
	return latest
}

func (l DayLog[T]) Clone() DayLog[T] {
	if l == nil {
		return nil
	}
	out := make(DayLog[T], len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

func (l DayLog[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

func (l *DayLog[T]) UnmarshalJSON(data []byte) error {
	var entries []T
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*l = make(DayLog[T], len(entries))
	for _, entry := range entries {
		l.Put(entry)
	}
	return nil
}

// Value stores the log as a JSON array.
func (l DayLog[T]) Value() (driver.Value, error) {
	return l.MarshalJSON()
}

// Scan reads a JSON array column.
func (l *DayLog[T]) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = make(DayLog[T])
		return nil
	case []byte:
		return l.UnmarshalJSON(v)
	case string:
		return l.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported day log source %T", src)
	}
}

// ProgressEntry records the progress reported on one day.
type ProgressEntry struct {
	Date     string `json:"date"`
	Progress int    `json:"progress"`
	Note     string `json:"note"`
}

func (e ProgressEntry) Day() string { return e.Date }

// TimeEntry records the hours worked on one day.
type TimeEntry struct {
	Date        string  `json:"date"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

func (e TimeEntry) Day() string { return e.Date }

// DailyUpdate is the stand-up style note for one day.
type DailyUpdate struct {
	Date            string     `json:"date"`
	WorkedOn        bool       `json:"workedOn"`
	Status          TaskStatus `json:"status"`
	Accomplishments []string   `json:"accomplishments"`
	Blockers        []string   `json:"blockers"`
	NextSteps       []string   `json:"nextSteps"`
	Mood            Mood       `json:"mood"`
}

func (u DailyUpdate) Day() string { return u.Date }

// StringList is a JSON-encoded list column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

func (s *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = StringList{}
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(s))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(s))
	default:
		return fmt.Errorf("unsupported string list source %T", src)
	}
}
