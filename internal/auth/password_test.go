package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_Bcrypt(t *testing.T) {
	h := NewPasswordHasher(SchemeBcrypt, "salt", bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.True(t, h.Verify("secret123", hash))
	assert.False(t, h.Verify("secret124", hash))
	assert.False(t, h.NeedsRehash(hash))
}

func TestPasswordHasher_Legacy(t *testing.T) {
	h := NewPasswordHasher(SchemeLegacy, "app-salt", 0)

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	again, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.Equal(t, hash, again)
	assert.Len(t, hash, 64)
	assert.Equal(t, LegacyHash("secret123", "app-salt"), hash)

	assert.True(t, h.Verify("secret123", hash))
	assert.False(t, h.Verify("other", hash))
	assert.False(t, h.NeedsRehash(hash))
}

func TestPasswordHasher_VerifiesLegacyUnderBcrypt(t *testing.T) {
	h := NewPasswordHasher(SchemeBcrypt, "app-salt", bcrypt.MinCost)
	legacy := LegacyHash("secret123", "app-salt")

	assert.True(t, h.Verify("secret123", legacy))
	assert.True(t, h.Verify("secret123", strings.ToUpper(legacy)))
	assert.False(t, h.Verify("secret123", LegacyHash("secret123", "other-salt")))
	assert.True(t, h.NeedsRehash(legacy))
}

func TestPasswordHasher_CostChangeNeedsRehash(t *testing.T) {
	old := NewPasswordHasher(SchemeBcrypt, "", bcrypt.MinCost)
	hash, err := old.Hash("pw")
	require.NoError(t, err)

	h := NewPasswordHasher(SchemeBcrypt, "", bcrypt.MinCost+1)
	assert.True(t, h.Verify("pw", hash))
	assert.True(t, h.NeedsRehash(hash))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" investigator ")
	assert.True(t, ok)
	assert.Equal(t, RoleInvestigator, r)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}
