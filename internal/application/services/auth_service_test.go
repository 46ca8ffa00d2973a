package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

func register(t *testing.T, f *fixture) *ports.AuthResponse {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), ports.RegisterRequest{
		Email:    "a@x.com",
		Password: "secret1",
		Name:     "A",
	})
	require.NoError(t, err)
	return resp
}

func TestAuthRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered := register(t, f)
	assert.NotEmpty(t, registered.Token)
	assert.NotEmpty(t, registered.RefreshToken)

	resp, err := f.auth.Login(ctx, ports.LoginRequest{Email: "A@X.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resp.User.ID)

	_, err = f.auth.Login(ctx, ports.LoginRequest{Email: "a@x.com", Password: "wrong!"})
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, ports.LoginRequest{Email: "nobody@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)
}

func TestAuthVerifyClaims(t *testing.T) {
	f := newFixture(t)
	resp := register(t, f)

	claims, err := f.auth.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, entities.UserRoleUser, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Type)

	refresh, err := f.auth.Verify(resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.Type)
	assert.NotEmpty(t, refresh.ID)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := register(t, f)

	user, err := f.auth.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = f.auth.Authenticate(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, entities.ErrInvalidToken, "refresh tokens are not access tokens")

	_, err = f.auth.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, entities.ErrInvalidToken)

	f.clock.advance(16 * time.Minute)
	_, err = f.auth.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, entities.ErrInvalidToken)
}

func TestAuthRejectsForeignSignature(t *testing.T) {
	f := newFixture(t)
	resp := register(t, f)

	other := newFixture(t)
	other.auth.jwtConfig.Secret = "another-secret"
	_, err := other.auth.Verify(resp.Token)
	assert.ErrorIs(t, err, entities.ErrInvalidToken)
}

func TestAuthenticateDeletedUser(t *testing.T) {
	f := newFixture(t)
	resp := register(t, f)

	// same signing key, but a store that never saw the user
	other := newFixture(t)
	_, err := other.auth.Authenticate(context.Background(), resp.Token)
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
}

func TestAuthRefreshRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := register(t, f)

	rotated, err := f.auth.Refresh(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, resp.User.ID, rotated.User.ID)

	_, err = f.auth.Refresh(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, entities.ErrInvalidToken, "a refresh token works once")

	_, err = f.auth.Refresh(ctx, rotated.Token)
	assert.ErrorIs(t, err, entities.ErrInvalidToken, "access tokens cannot refresh")

	_, err = f.auth.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthLogoutRevokesRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := register(t, f)

	require.NoError(t, f.auth.Logout(ctx, resp.RefreshToken))

	_, err := f.auth.Refresh(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, entities.ErrInvalidToken)
	assert.ErrorIs(t, f.auth.Logout(ctx, resp.RefreshToken), entities.ErrInvalidToken)
}
