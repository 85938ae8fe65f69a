package models

import (
	"strings"
	"time"
)

// EmotionalStatus is the user's self-reported or classified mood.
type EmotionalStatus string

const (
	StatusUnknown    EmotionalStatus = "Unknown"
	StatusGreat      EmotionalStatus = "Great"
	StatusGood       EmotionalStatus = "Good"
	StatusOkay       EmotionalStatus = "Okay"
	StatusStruggling EmotionalStatus = "Struggling"
	StatusCrisis     EmotionalStatus = "Crisis"
)

// CheckInStatuses are the statuses a user can pick or a classifier can return.
var CheckInStatuses = []EmotionalStatus{
	StatusGreat,
	StatusGood,
	StatusOkay,
	StatusStruggling,
	StatusCrisis,
}

// Valid reports whether s belongs to the closed enumeration, Unknown included.
func (s EmotionalStatus) Valid() bool {
	if s == StatusUnknown {
		return true
	}
	for _, known := range CheckInStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus maps raw text onto the enumeration. Anything outside it is Unknown.
func ParseStatus(raw string) EmotionalStatus {
	s := EmotionalStatus(raw)
	if s.Valid() {
		return s
	}
	return StatusUnknown
}

// ParseCheckIn matches a user typed status case-insensitively. Unknown is not
// a valid check-in.
func ParseCheckIn(raw string) (EmotionalStatus, bool) {
	raw = strings.TrimSpace(raw)
	for _, status := range CheckInStatuses {
		if strings.EqualFold(raw, string(status)) {
			return status, true
		}
	}
	return StatusUnknown, false
}

// AgeRanges offered during onboarding.
var AgeRanges = []string{"Under 18", "18-24", "25-34", "35-44", "45-64", "65+"}

// EmergencyContact is the trusted person shown on the emergency screen.
type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

// Present is true once a contact name has been given.
func (c EmergencyContact) Present() bool {
	return c.Name != ""
}

// Permissions are granted once during onboarding.
type Permissions struct {
	EmergencyAlerts bool `json:"emergencyAlerts"`
	LocationSharing bool `json:"locationSharing"`
	AutoCall        bool `json:"autoCall"`
}

// UserProfile is the single profile record of a device (one Telegram chat).
type UserProfile struct {
	Name             string           `json:"name"`
	AgeRange         string           `json:"ageRange"`
	IsOnboarded      bool             `json:"isOnboarded"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	Permissions      Permissions      `json:"permissions"`
	CurrentStatus    EmotionalStatus  `json:"currentStatus"`
}

// DefaultProfile is what a fresh or reset device starts with.
func DefaultProfile() UserProfile {
	return UserProfile{
		CurrentStatus: StatusUnknown,
	}
}

// ProfilePatch is a partial profile update. Nil fields are left untouched;
// nested structs are replaced as a whole.
type ProfilePatch struct {
	Name             *string
	AgeRange         *string
	IsOnboarded      *bool
	EmergencyContact *EmergencyContact
	Permissions      *Permissions
	CurrentStatus    *EmotionalStatus
}

// Apply returns p merged over base.
func (p ProfilePatch) Apply(base UserProfile) UserProfile {
	out := base
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.AgeRange != nil {
		out.AgeRange = *p.AgeRange
	}
	if p.IsOnboarded != nil {
		out.IsOnboarded = *p.IsOnboarded
	}
	if p.EmergencyContact != nil {
		out.EmergencyContact = *p.EmergencyContact
	}
	if p.Permissions != nil {
		out.Permissions = *p.Permissions
	}
	if p.CurrentStatus != nil {
		out.CurrentStatus = *p.CurrentStatus
	}
	return out
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one entry of a chat transcript. Messages are never mutated
// once appended.
type ChatMessage struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsThinking bool      `json:"isThinking,omitempty"`
}

// Coordinates is a (latitude, longitude) pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PlaceResult is a place returned by a location grounded search. Maps
// grounding reports neither rating nor review count, so both stay zero unless
// a backend fills them.
type PlaceResult struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"reviewCount,omitempty"`
	Link        string  `json:"link"`
}

// PlacesResult pairs the model's summary with the places it grounded on.
type PlacesResult struct {
	Summary string        `json:"summary"`
	Places  []PlaceResult `json:"places"`
}
