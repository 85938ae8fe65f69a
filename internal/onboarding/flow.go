// Package onboarding walks a new user through the profile questions one step
// at a time.
package onboarding

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xaenox/hopeconnect/internal/models"
)

type Step int

const (
	StepName Step = iota
	StepAgeRange
	StepContactName
	StepContactPhone
	StepContactRelationship
	StepPermissions
	StepDone
)

// SkipWord skips an optional step.
const SkipWord = "skip"

// Permission identifies one toggle on the permissions step.
type Permission string

const (
	PermissionAlerts   Permission = "alerts"
	PermissionLocation Permission = "location"
	PermissionAutoCall Permission = "autocall"
)

var (
	ErrNameRequired    = errors.New("please tell me your name")
	ErrInvalidAgeRange = errors.New("please pick one of the listed age ranges")
	ErrPhoneRequired   = errors.New("please enter a phone number for your contact")
	ErrInvalidPhone    = errors.New("that doesn't look like a phone number")
	ErrWrongStep       = errors.New("not available at this step")
)

var prompts = map[Step]string{
	StepName:                "Welcome to HopeConnect. What should I call you?",
	StepAgeRange:            "Which age range are you in?",
	StepContactName:         "Who is a trusted person we can show you in an emergency? (e.g. Mom, Best Friend). Type \"skip\" to do this later.",
	StepContactPhone:        "What is their phone number?",
	StepContactRelationship: "How are they related to you? (e.g. Friend). Type \"skip\" to leave it blank.",
	StepPermissions:         "Customize your safety nets. These are OFF by default. Toggle what you want, then finish.",
	StepDone:                "You're all set.",
}

// Form is the data collected so far.
type Form struct {
	Name        string
	AgeRange    string
	Contact     models.EmergencyContact
	Permissions models.Permissions
}

// Validate checks the fields required to finish onboarding.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrNameRequired
	}
	if !slices.Contains(models.AgeRanges, f.AgeRange) {
		return ErrInvalidAgeRange
	}
	if f.Contact.Name != "" && f.Contact.Phone == "" {
		return ErrPhoneRequired
	}
	return nil
}

// Patch is the profile update that completes onboarding.
func (f Form) Patch() models.ProfilePatch {
	onboarded := true
	contact := f.Contact
	perms := f.Permissions
	name := strings.TrimSpace(f.Name)
	age := f.AgeRange
	return models.ProfilePatch{
		Name:             &name,
		AgeRange:         &age,
		IsOnboarded:      &onboarded,
		EmergencyContact: &contact,
		Permissions:      &perms,
	}
}

// Flow is the step machine of one onboarding run. It is not safe for
// concurrent use.
type Flow struct {
	step Step
	form Form
}

func NewFlow() *Flow {
	return &Flow{step: StepName}
}

func (f *Flow) Step() Step { return f.step }

func (f *Flow) Form() Form { return f.form }

func (f *Flow) Done() bool { return f.step == StepDone }

// Prompt is the question for the current step.
func (f *Flow) Prompt() string {
	return prompts[f.step]
}

// Options lists the fixed choices of the current step, if any.
func (f *Flow) Options() []string {
	switch f.step {
	case StepAgeRange:
		return models.AgeRanges
	case StepPermissions:
		return []string{string(PermissionAlerts), string(PermissionLocation), string(PermissionAutoCall)}
	}
	return nil
}

// Submit answers the current step and advances. On a validation error the
// step is unchanged.
func (f *Flow) Submit(input string) error {
	input = strings.TrimSpace(input)
	skip := strings.EqualFold(input, SkipWord)

	switch f.step {
	case StepName:
		if input == "" {
			return ErrNameRequired
		}
		f.form.Name = input
		f.step = StepAgeRange

	case StepAgeRange:
		if !slices.Contains(models.AgeRanges, input) {
			return ErrInvalidAgeRange
		}
		f.form.AgeRange = input
		f.step = StepContactName

	case StepContactName:
		if skip || input == "" {
			f.form.Contact = models.EmergencyContact{}
			f.step = StepPermissions
			return nil
		}
		f.form.Contact.Name = input
		f.step = StepContactPhone

	case StepContactPhone:
		if input == "" || skip {
			return ErrPhoneRequired
		}
		if !validPhone(input) {
			return ErrInvalidPhone
		}
		f.form.Contact.Phone = input
		f.step = StepContactRelationship

	case StepContactRelationship:
		if !skip {
			f.form.Contact.Relationship = input
		}
		f.step = StepPermissions

	default:
		return fmt.Errorf("submit: %w", ErrWrongStep)
	}
	return nil
}

// Toggle flips one permission on the permissions step.
func (f *Flow) Toggle(p Permission) error {
	if f.step != StepPermissions {
		return fmt.Errorf("toggle: %w", ErrWrongStep)
	}
	switch p {
	case PermissionAlerts:
		f.form.Permissions.EmergencyAlerts = !f.form.Permissions.EmergencyAlerts
	case PermissionLocation:
		f.form.Permissions.LocationSharing = !f.form.Permissions.LocationSharing
	case PermissionAutoCall:
		f.form.Permissions.AutoCall = !f.form.Permissions.AutoCall
	default:
		return fmt.Errorf("unknown permission %q", p)
	}
	return nil
}

// Back returns to the previous step.
func (f *Flow) Back() {
	switch f.step {
	case StepName, StepDone:
	case StepPermissions:
		if f.form.Contact.Name == "" {
			f.step = StepContactName
		} else {
			f.step = StepContactRelationship
		}
	default:
		f.step--
	}
}

// Finish completes the flow from the permissions step and returns the
// profile update to apply.
func (f *Flow) Finish() (models.ProfilePatch, error) {
	if f.step != StepPermissions {
		return models.ProfilePatch{}, fmt.Errorf("finish: %w", ErrWrongStep)
	}
	if err := f.form.Validate(); err != nil {
		return models.ProfilePatch{}, err
	}
	f.step = StepDone
	return f.form.Patch(), nil
}

func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune(" +-().", r):
		default:
			return false
		}
	}
	return digits >= 3
}
