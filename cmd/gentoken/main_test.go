package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
)

func TestMint(t *testing.T) {
	tokens := auth.NewJWTManager("gentoken-test-secret-gentoken-test", time.Hour, "eventplanner")

	token, err := mint(tokens, "admin", "01HZXADMIN", "owner")
	require.NoError(t, err)
	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "01HZXADMIN", claims.Subject)

	token, err = mint(tokens, "user", "01HZXUSER", "")
	require.NoError(t, err)
	claims, err = tokens.Validate(token)
	require.NoError(t, err)
	assert.False(t, claims.IsAdmin())

	_, err = mint(tokens, "admin", "x", "superuser")
	assert.Error(t, err)
	_, err = mint(tokens, "robot", "x", "")
	assert.Error(t, err)
}
