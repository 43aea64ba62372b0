package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/loyalty"
)

func TestPasswordHash_RoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, auth.CheckPassword(hash, "correct horse battery staple"))
	assert.ErrorIs(t, auth.CheckPassword(hash, "correct horse battery"), auth.ErrInvalidCredentials)
	assert.ErrorIs(t, auth.CheckPassword(hash, ""), auth.ErrInvalidCredentials)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	// GIVEN: A token issued for an internal user
	// WHEN: Validating it with the same secret
	// THEN: The claims carry the user id and level

	issuer := auth.NewTokenIssuer("unit-test-secret", time.Hour)
	user := &loyalty.User{ID: 42, Level: loyalty.LevelInternal}

	token, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, loyalty.UserID(42), claims.UserID)
	assert.Equal(t, loyalty.LevelInternal, claims.Level)
}

func TestTokenIssuer_WrongSecret_Rejected(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret-a", time.Hour)
	other := auth.NewTokenIssuer("secret-b", time.Hour)

	token, err := issuer.Issue(&loyalty.User{ID: 7, Level: loyalty.LevelCustomer})
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_Tampered_Rejected(t *testing.T) {
	issuer := auth.NewTokenIssuer("unit-test-secret", time.Hour)

	token, err := issuer.Issue(&loyalty.User{ID: 7, Level: loyalty.LevelCustomer})
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = issuer.Validate(tampered)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_Expired_Rejected(t *testing.T) {
	issuer := auth.NewTokenIssuer("unit-test-secret", -time.Minute)

	token, err := issuer.Issue(&loyalty.User{ID: 7, Level: loyalty.LevelCustomer})
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
