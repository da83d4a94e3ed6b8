package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

type Clinic struct {
	Base
	Slug               string             `db:"slug" json:"slug"`
	Name               string             `db:"name" json:"name"`
	SubscriptionTier   string             `db:"subscription_tier" json:"subscription_tier"`
	SubscriptionStatus SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	Active             bool               `db:"active" json:"active"`
	BookingEnabled     bool               `db:"booking_enabled" json:"booking_enabled"`
	Timezone           string             `db:"timezone" json:"timezone"`
	WorkingHours       WorkingHours       `db:"working_hours" json:"working_hours"`
}

// Location resolves the clinic timezone, UTC when unset or unknown
func (c *Clinic) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkingDay is one weekday's opening window, "HH:MM" in clinic local time
type WorkingDay struct {
	Weekday time.Weekday `json:"weekday"`
	Open    string       `json:"open"`
	Close   string       `json:"close"`
}

// WorkingHours is nil when the clinic never configured any
type WorkingHours []WorkingDay

// Configured reports whether the clinic has working hours of its own
func (w WorkingHours) Configured() bool {
	return len(w) > 0
}

// For returns the windows defined for a weekday
func (w WorkingHours) For(day time.Weekday) []WorkingDay {
	var out []WorkingDay
	for _, d := range w {
		if d.Weekday == day {
			out = append(out, d)
		}
	}
	return out
}

func (w *WorkingHours) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into WorkingHours", src)
	}
	if len(raw) == 0 {
		*w = nil
		return nil
	}
	return json.Unmarshal(raw, w)
}

func (w WorkingHours) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// ClockTime parses an "HH:MM" wall clock value into minutes past midnight.
// "24:00" is the end of the day and only makes sense as a closing time.
func ClockTime(s string) (int, error) {
	if s == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
