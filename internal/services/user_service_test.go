package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/huddleapp/huddle/internal/database/testutil"
	apperrors "github.com/huddleapp/huddle/pkg/errors"
)

func TestUserRegisterAndAuthenticate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)

	suffix := uuid.NewString()[:8]
	user, err := svc.Register(context.Background(), RegisterUserInput{
		Username:    "reg-" + suffix,
		Email:       "Reg-" + suffix + "@Example.com",
		Password:    "correct horse",
		DisplayName: "Reggie",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	// Email is normalised and the password never stored in the clear.
	require.Equal(t, "reg-"+suffix+"@example.com", user.Email)
	require.NotEqual(t, "correct horse", user.Password)

	authed, err := svc.Authenticate(context.Background(), user.Email, "correct horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
	require.NotNil(t, authed.LastLoginAt)

	_, err = svc.Authenticate(context.Background(), user.Email, "wrong password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestUserRegisterRejectsShortPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterUserInput{
		Username: "short-" + uuid.NewString()[:8],
		Email:    "short-" + uuid.NewString()[:8] + "@example.com",
		Password: "tiny",
	})
	require.Error(t, err)
}

func TestUserRegisterRejectsDuplicates(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)

	input := RegisterUserInput{
		Username: "dup-" + uuid.NewString()[:8],
		Email:    "dup-" + uuid.NewString()[:8] + "@example.com",
		Password: "long enough",
	}
	_, err = svc.Register(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), input)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUserGetByEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)

	user := newTestUser(t, db, "lookup")
	found, err := svc.GetByEmail(context.Background(), user.Email)
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	_, err = svc.GetByEmail(context.Background(), "missing@example.com")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
