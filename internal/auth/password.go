package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password schemes understood by PasswordHasher.
const (
	SchemeBcrypt = "bcrypt"
	SchemeLegacy = "legacy"
)

// PasswordHasher turns plaintext passwords into storable digests.
//
// Two formats are recognised on verify: bcrypt hashes and the legacy
// fixed-salt SHA-256 hex digest.  The legacy digest is deterministic (no
// per-user salt) and is kept only so existing rows keep working; it is
// upgraded on the next successful login when the scheme is bcrypt.
type PasswordHasher struct {
	scheme string
	salt   string
	cost   int
}

// NewPasswordHasher returns a hasher producing digests of the given scheme.
// Unknown schemes fall back to bcrypt, and costs outside bcrypt's range fall
// back to bcrypt.DefaultCost.
func NewPasswordHasher(scheme, salt string, cost int) *PasswordHasher {
	if scheme != SchemeLegacy {
		scheme = SchemeBcrypt
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{scheme: scheme, salt: salt, cost: cost}
}

// Hash returns the digest for password in the configured scheme.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.scheme == SchemeLegacy {
		return LegacyHash(password, h.salt), nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches stored.
func (h *PasswordHasher) Verify(password, stored string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	want := LegacyHash(password, h.salt)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(want)) == 1
}

// NeedsRehash reports whether stored should be replaced by a fresh Hash.
func (h *PasswordHasher) NeedsRehash(stored string) bool {
	if h.scheme == SchemeLegacy {
		return false
	}
	if !isBcrypt(stored) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(stored))
	return err != nil || cost != h.cost
}

// LegacyHash is hex(sha256(password + salt)).
func LegacyHash(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
