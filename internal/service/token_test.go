package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rescuelog/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T, clock Clock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour, clock)
	require.NoError(t, err)
	return issuer
}

func TestAccessTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newIssuer(t, clock)
	acct := &model.Account{ID: uuid.New(), Role: model.RoleDoctor}

	tok, err := issuer.IssueAccessToken(acct)
	require.NoError(t, err)

	user, err := issuer.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, user.ID)
	assert.Equal(t, model.RoleDoctor, user.Role)
}

func TestAccessTokenExpiresAfterFifteenMinutes(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newIssuer(t, clock)

	tok, err := issuer.IssueAccessToken(&model.Account{ID: uuid.New(), Role: model.RoleUser})
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	_, err = issuer.ParseAccessToken(tok)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = issuer.ParseAccessToken(tok)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	issuer := newIssuer(t, &fakeClock{now: time.Now()})
	acct := &model.Account{ID: uuid.New(), Role: model.RoleUser}

	refresh, err := issuer.IssueRefreshToken(acct)
	require.NoError(t, err)

	_, err = issuer.ParseAccessToken(refresh)
	require.ErrorIs(t, err, ErrUnauthorized)

	id, err := issuer.ParseRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, id)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	issuer := newIssuer(t, &fakeClock{now: time.Now()})
	acct := &model.Account{ID: uuid.New(), Role: model.RoleUser}

	a, err := issuer.IssueRefreshToken(acct)
	require.NoError(t, err)
	b, err := issuer.IssueRefreshToken(acct)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewTokenIssuerValidation(t *testing.T) {
	_, err := NewTokenIssuer("", "x", time.Minute, time.Hour, nil)
	assert.True(t, errors.Is(err, ErrMisconfigured))

	_, err = NewTokenIssuer("same", "same", time.Minute, time.Hour, nil)
	assert.True(t, errors.Is(err, ErrMisconfigured))

	_, err = NewTokenIssuer("a", "b", 0, time.Hour, nil)
	assert.True(t, errors.Is(err, ErrMisconfigured))
}

func TestRefreshTokenMatches(t *testing.T) {
	hash := hashRefreshToken("token-a")
	assert.True(t, refreshTokenMatches(hash, "token-a"))
	assert.False(t, refreshTokenMatches(hash, "token-b"))
	assert.False(t, refreshTokenMatches("", "token-a"))
}
