package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour, "test")
	want := Identity{UserID: 42, BusinessID: 7, Role: RoleBusiness}

	now := time.Now()
	signed, exp, err := tokens.Issue(want, now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), exp, time.Second)

	got, gotExp, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.WithinDuration(t, exp, gotExp, time.Second)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens := NewTokens("test-secret", time.Minute, "test")
	signed, _, err := tokens.Issue(Identity{UserID: 1, Role: RoleCustomer}, time.Now().Add(-2*time.Minute))
	require.NoError(t, err)

	_, _, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokens("secret-a", time.Hour, "test")
	verifier := NewTokens("secret-b", time.Hour, "test")

	signed, _, err := issuer.Issue(Identity{UserID: 1, Role: RoleCustomer}, time.Now())
	require.NoError(t, err)

	_, _, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour, "test")
	_, _, err := tokens.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleBusiness.Valid())
	assert.True(t, RoleCustomer.Valid())
	assert.False(t, Role("root").Valid())
}
