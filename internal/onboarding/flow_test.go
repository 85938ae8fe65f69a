package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/hopeconnect/internal/models"
	"github.com/xaenox/hopeconnect/internal/navigation"
	"github.com/xaenox/hopeconnect/internal/profile"
	"github.com/xaenox/hopeconnect/internal/storage"
	"go.uber.org/zap"
)

func submitAll(t *testing.T, f *Flow, answers ...string) {
	t.Helper()
	for _, a := range answers {
		require.NoError(t, f.Submit(a), "answer %q at step %d", a, f.Step())
	}
}

func TestFullFlowOnboardsUser(t *testing.T) {
	ctx := context.Background()
	store := profile.NewStore(ctx, storage.NewMemoryStorage(), zap.NewNop())
	require.False(t, navigation.CanEnter(navigation.RouteDashboard, store.Current()))

	f := NewFlow()
	submitAll(t, f, "Alex", "25-34", "Sam", "+1 555 0100", "Friend")
	require.Equal(t, StepPermissions, f.Step())
	require.NoError(t, f.Toggle(PermissionLocation))

	patch, err := f.Finish()
	require.NoError(t, err)
	assert.True(t, f.Done())

	got, err := store.Update(ctx, patch)
	require.NoError(t, err)

	assert.True(t, got.IsOnboarded)
	assert.Equal(t, "Alex", got.Name)
	assert.Equal(t, "25-34", got.AgeRange)
	assert.Equal(t, models.EmergencyContact{Name: "Sam", Phone: "+1 555 0100", Relationship: "Friend"}, got.EmergencyContact)
	assert.Equal(t, models.Permissions{LocationSharing: true}, got.Permissions)
	assert.Equal(t, models.StatusUnknown, got.CurrentStatus)
	assert.True(t, navigation.CanEnter(navigation.RouteDashboard, got))
}

func TestValidationKeepsStep(t *testing.T) {
	f := NewFlow()

	assert.ErrorIs(t, f.Submit("   "), ErrNameRequired)
	assert.Equal(t, StepName, f.Step())

	require.NoError(t, f.Submit("Alex"))
	assert.ErrorIs(t, f.Submit("30ish"), ErrInvalidAgeRange)
	assert.Equal(t, StepAgeRange, f.Step())

	submitAll(t, f, "65+", "Sam")
	assert.ErrorIs(t, f.Submit(""), ErrPhoneRequired)
	assert.ErrorIs(t, f.Submit(SkipWord), ErrPhoneRequired)
	assert.ErrorIs(t, f.Submit("call me maybe"), ErrInvalidPhone)
	assert.Equal(t, StepContactPhone, f.Step())
}

func TestSkipContact(t *testing.T) {
	f := NewFlow()
	submitAll(t, f, "Alex", "Under 18", "SKIP")
	assert.Equal(t, StepPermissions, f.Step())

	patch, err := f.Finish()
	require.NoError(t, err)
	assert.False(t, patch.EmergencyContact.Present())
	assert.True(t, *patch.IsOnboarded)
}

func TestSkipRelationship(t *testing.T) {
	f := NewFlow()
	submitAll(t, f, "Alex", "18-24", "Mom", "555-0100", "skip")

	assert.Equal(t, models.EmergencyContact{Name: "Mom", Phone: "555-0100"}, f.Form().Contact)
}

func TestToggleAndFinishOnlyOnPermissions(t *testing.T) {
	f := NewFlow()
	assert.ErrorIs(t, f.Toggle(PermissionAlerts), ErrWrongStep)
	_, err := f.Finish()
	assert.ErrorIs(t, err, ErrWrongStep)

	submitAll(t, f, "Alex", "35-44", "skip")
	require.NoError(t, f.Toggle(PermissionAlerts))
	require.NoError(t, f.Toggle(PermissionAutoCall))
	require.NoError(t, f.Toggle(PermissionAutoCall))
	assert.Error(t, f.Toggle("telepathy"))
	assert.Equal(t, models.Permissions{EmergencyAlerts: true}, f.Form().Permissions)

	assert.ErrorIs(t, f.Submit("anything"), ErrWrongStep)
}

func TestBack(t *testing.T) {
	f := NewFlow()
	f.Back()
	assert.Equal(t, StepName, f.Step())

	submitAll(t, f, "Alex", "45-64", "skip")
	f.Back()
	assert.Equal(t, StepContactName, f.Step(), "skipped contact returns to the contact name")

	submitAll(t, f, "Sam", "555 0100", "Brother")
	f.Back()
	assert.Equal(t, StepContactRelationship, f.Step())
	f.Back()
	assert.Equal(t, StepContactPhone, f.Step())
}

func TestOptionsAndPrompts(t *testing.T) {
	f := NewFlow()
	assert.Nil(t, f.Options())
	assert.NotEmpty(t, f.Prompt())

	require.NoError(t, f.Submit("Alex"))
	assert.Equal(t, models.AgeRanges, f.Options())
}

func TestFormValidate(t *testing.T) {
	tests := []struct {
		name string
		form Form
		want error
	}{
		{"valid", Form{Name: "Alex", AgeRange: "25-34"}, nil},
		{"missing name", Form{AgeRange: "25-34"}, ErrNameRequired},
		{"bad age", Form{Name: "Alex", AgeRange: "100"}, ErrInvalidAgeRange},
		{"contact without phone", Form{Name: "Alex", AgeRange: "25-34", Contact: models.EmergencyContact{Name: "Sam"}}, ErrPhoneRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
