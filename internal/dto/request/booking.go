package request

type ParticipantsRequest struct {
	Adults   int `json:"adults" validate:"min=0,max=500"`
	Children int `json:"children" validate:"min=0,max=500"`
	Seniors  int `json:"seniors" validate:"min=0,max=500"`
}

type ActivityLineRequest struct {
	ActivityID   string              `json:"activity_id" validate:"required,uuid"`
	Date         string              `json:"date" validate:"required,datetime=2006-01-02"`
	Participants ParticipantsRequest `json:"participants"`
}

type ContactInfoRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=120"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"required,min=6,max=32"`
	SpecialNeeds   string `json:"special_needs,omitempty" validate:"max=500"`
	DietaryNeeds   string `json:"dietary_needs,omitempty" validate:"max=500"`
	EmergencyName  string `json:"emergency_name,omitempty" validate:"max=120"`
	EmergencyPhone string `json:"emergency_phone,omitempty" validate:"max=32"`
}

type GroupDetailsRequest struct {
	GroupName    string `json:"group_name,omitempty" validate:"max=120"`
	GroupType    string `json:"group_type,omitempty" validate:"omitempty,oneof=family school corporate tour_group other"`
	Requirements string `json:"requirements,omitempty" validate:"max=1000"`
}

type CreateBookingRequest struct {
	FarmID       string                `json:"farm_id" validate:"required,uuid"`
	Activities   []ActivityLineRequest `json:"activities" validate:"required,min=1,max=20,dive"`
	ContactInfo  ContactInfoRequest    `json:"contact_info"`
	GroupDetails GroupDetailsRequest   `json:"group_details"`
}

// ModifyBookingRequest replaces only the sections that are present.
type ModifyBookingRequest struct {
	Activities   []ActivityLineRequest `json:"activities,omitempty" validate:"omitempty,min=1,max=20,dive"`
	ContactInfo  *ContactInfoRequest   `json:"contact_info,omitempty"`
	GroupDetails *GroupDetailsRequest  `json:"group_details,omitempty"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed no-show cancelled"`
	Reason string `json:"reason" validate:"max=500"`
}
