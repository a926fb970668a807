package usecase

import (
	"fmt"
	"time"

	"agro-booking/internal/data/entity"
)

type AvailabilityReason string

const (
	ReasonAvailable        AvailabilityReason = ""
	ReasonActivityInactive AvailabilityReason = "activity_inactive"
	ReasonBlackoutDate     AvailabilityReason = "blackout_date"
	ReasonAboveMaximum     AvailabilityReason = "above_maximum"
	ReasonBelowMinimum     AvailabilityReason = "below_minimum"
)

type Availability struct {
	Available bool
	Reason    AvailabilityReason
	Message   string
}

// CheckAvailability applies the booking rules in order: inactive, blackout, maximum, minimum.
// The first failing rule wins.
func CheckAvailability(activity *entity.Activity, date time.Time, participants int) Availability {
	if !activity.IsActive {
		return Availability{
			Reason:  ReasonActivityInactive,
			Message: fmt.Sprintf("%s is not currently offered", activity.Name),
		}
	}

	day := entity.DateKey(date)
	for _, blackout := range activity.BlackoutDates {
		if entity.DateKey(blackout) == day {
			return Availability{
				Reason:  ReasonBlackoutDate,
				Message: fmt.Sprintf("%s is not available on %s", activity.Name, day),
			}
		}
	}

	if participants > activity.MaxParticipants {
		return Availability{
			Reason:  ReasonAboveMaximum,
			Message: fmt.Sprintf("Maximum %d participants allowed", activity.MaxParticipants),
		}
	}

	if participants < activity.MinParticipants {
		return Availability{
			Reason:  ReasonBelowMinimum,
			Message: fmt.Sprintf("Minimum %d participants required", activity.MinParticipants),
		}
	}

	return Availability{Available: true}
}
