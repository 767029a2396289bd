package models

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// SearchParams are fixed when a monitor is created.
type SearchParams struct {
	Origin      string `db:"origin"`
	Destination string `db:"destination"`
	DepartDate  string `db:"depart_date"` // YYYYMMDD
	ReturnDate  string `db:"return_date"` // YYYYMMDD
}

func (p SearchParams) String() string {
	return fmt.Sprintf("%s-%s %s~%s", p.Origin, p.Destination, p.DepartDate, p.ReturnDate)
}

type Monitor struct {
	ID      string `db:"id"`
	OwnerID int64  `db:"owner_id"`
	SearchParams
	Filter        TimeFilter `db:"time_filter"`
	LowestPrice   *int64     `db:"lowest_price"`
	Status        Status     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	LastCheckedAt *time.Time `db:"last_checked_at"`
	EndedAt       *time.Time `db:"ended_at"`

	// OverallLowest is the minimum over every listing, filter or not.
	OverallLowest   *int64 `db:"overall_lowest_price"`
	// NoMatchNotified is set once the owner has been told the filter
	// stopped matching, and cleared when a match returns.
	NoMatchNotified bool   `db:"no_match_notified"`
}

// CheckResult is what a check writes back to an active monitor. Nil
// fields leave the stored value untouched.
type CheckResult struct {
	LowestPrice     *int64
	OverallLowest   *int64
	NoMatchNotified *bool
	CheckedAt       time.Time
}

func (m *Monitor) IsActive() bool {
	return m.Status == StatusActive
}

// RetentionAnchor is the time the retention clock of a finished monitor
// counts from: its last check, else the moment it left Active, else its
// creation.
func (m *Monitor) RetentionAnchor() time.Time {
	switch {
	case m.LastCheckedAt != nil:
		return *m.LastCheckedAt
	case m.EndedAt != nil:
		return *m.EndedAt
	default:
		return m.CreatedAt
	}
}

// Clock is a time of day in minutes after midnight.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range", s)
	}
	return NewClock(h, m), nil
}

func (c Clock) Hour() int {
	return int(c) / 60
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Listing is one round-trip candidate returned by the price source.
// Departure is the outbound departure, Return the return-leg departure.
type Listing struct {
	FlightID  string
	Price     int64
	Departure Clock
	Arrival   Clock
	Return    Clock
	ReturnArr Clock
}
