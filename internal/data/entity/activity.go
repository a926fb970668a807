package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used for booking and blackout dates.
const DateLayout = "2006-01-02"

type Activity struct {
	Base
	FarmID          uuid.UUID           `db:"farm_id"`
	Name            string              `db:"name"`
	AdultPrice      decimal.Decimal     `db:"adult_price"`
	ChildPrice      decimal.NullDecimal `db:"child_price"`
	SeniorPrice     decimal.NullDecimal `db:"senior_price"`
	Currency        string              `db:"currency"`
	MinParticipants int                 `db:"min_participants"`
	MaxParticipants int                 `db:"max_participants"`
	BlackoutDates   []time.Time         `db:"blackout_dates"`
	IsActive        bool                `db:"is_active"`
}

// DateKey reduces t to its calendar day, ignoring time of day and zone.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD calendar day into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
