package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("42", RoleProfessor, "campus-api", "secret", time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := Parse(pair.AccessToken, "secret", "campus-api")
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, RoleProfessor, claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("42", RoleStudent, "campus-api", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "other-secret", "campus-api")
	assert.Error(t, err)
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	pair, err := Issue("42", RoleAdmin, "someone-else", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "secret", "campus-api")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("42", RoleAdmin, "campus-api", "secret", -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, "secret", "campus-api")
	assert.Error(t, err)
}

func TestRoleAllowed(t *testing.T) {
	assert.True(t, roleAllowed(RoleAdmin, []string{RoleAdmin, RoleProfessor}))
	assert.False(t, roleAllowed(RoleStudent, []string{RoleAdmin}))
}
