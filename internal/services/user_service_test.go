package services

import (
	"context"
	"errors"
	"testing"

	"crimewatch/internal/models"
	"crimewatch/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) userCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.User{}).Count(&n).Error)
	return n
}

func TestRegisterHashesAndNotifies(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Register(context.Background(), validation.RegistrationForm{
		Username:  " alice ",
		Email:     "alice@example.com",
		Password1: "correct horse",
		Password2: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsStaff)
	assert.NotEqual(t, "correct horse", user.Password)

	assert.Equal(t, []string{"alice"}, f.notifier.welcomed)
	assert.Equal(t, []string{"alice"}, f.notifier.notified)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")
	ctx := context.Background()

	_, err := f.users.Register(ctx, validation.RegistrationForm{
		Username: "alice", Email: "new@example.com", Password1: "correct horse", Password2: "correct horse",
	})
	assert.ErrorIs(t, err, validation.ErrDuplicateUsername)

	_, err = f.users.Register(ctx, validation.RegistrationForm{
		Username: "alice2", Email: "Alice@Example.com", Password1: "correct horse", Password2: "correct horse",
	})
	assert.ErrorIs(t, err, validation.ErrDuplicateEmail)

	assert.EqualValues(t, 1, f.userCount(t))
}

func TestRegisterRejectsMismatchedPasswords(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Register(context.Background(), validation.RegistrationForm{
		Username: "bob", Email: "bob@example.com", Password1: "correct horse", Password2: "battery staple",
	})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"Passwords do not match."}, verrs.For("password2"))
	assert.Zero(t, f.userCount(t))
	assert.Empty(t, f.notifier.welcomed)
}

func TestRegisterSucceedsWhenMailFails(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp: connection refused")

	user := f.user(t, "carol")
	assert.NotZero(t, user.ID)
	assert.Len(t, f.logs.FilterMessage("task failed").All(), 2)
}

func TestDuplicateRaceMapsToFieldError(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")

	err := f.users.duplicateError(context.Background(), validation.RegistrationForm{Username: "alice", Email: "x@example.com"}, errors.New("unique"))
	assert.ErrorIs(t, err, validation.ErrDuplicateUsername)
	assert.NotErrorIs(t, err, validation.ErrDuplicateEmail)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	ctx := context.Background()

	got, err := f.users.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = f.users.Authenticate(ctx, "alice", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateStaffSendsNoMail(t *testing.T) {
	f := newFixture(t)

	staff, err := f.users.CreateStaff(context.Background(), validation.RegistrationForm{
		Username: "chief", Email: "chief@example.com", Password1: "correct horse", Password2: "correct horse",
	})
	require.NoError(t, err)
	assert.True(t, staff.IsStaff)
	assert.Empty(t, f.notifier.welcomed)

	listed, err := f.users.ListStaff(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "chief", listed[0].Username)
}
