package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	in := Claims{UserID: 42, Email: "a@b.com", Role: RoleInvestigator}

	before := time.Now()
	raw, issued, err := codec.Issue(in)
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	got, err := codec.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, got.UserID)
	assert.Equal(t, in.Email, got.Email)
	assert.Equal(t, in.Role, got.Role)
	assert.Equal(t, issued.Exp, got.Exp)
	assert.Greater(t, got.Exp, before.Unix())
	assert.InDelta(t, before.Add(24*time.Hour).Unix(), got.Exp, 2)
}

func TestTokenCodec_WireFormat(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	raw, _, err := codec.Issue(Claims{UserID: 7, Email: "x@y.z", Role: RoleAdmin})
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.NotContains(t, p, "=")
		assert.NotContains(t, p, "+")
		assert.NotContains(t, p, "/")
	}

	hdr, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"HS256","typ":"JWT"}`, string(hdr))

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(payload, &m))
	assert.Equal(t, float64(7), m["userId"])
	assert.Equal(t, "x@y.z", m["email"])
	assert.Equal(t, "ADMIN", m["role"])
	assert.Contains(t, m, "exp")
}

func TestTokenCodec_TamperDetection(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	raw, _, err := codec.Issue(Claims{UserID: 1, Email: "a@b.com", Role: RoleCommunity})
	require.NoError(t, err)
	parts := strings.Split(raw, ".")

	flip := func(s string, i int) string {
		b := []byte(s)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		return string(b)
	}

	for seg := 0; seg < 2; seg++ {
		for i := 0; i < len(parts[seg]); i++ {
			mut := append([]string(nil), parts...)
			mut[seg] = flip(parts[seg], i)
			_, err := codec.Validate(strings.Join(mut, "."))
			require.Error(t, err, "segment %d index %d", seg, i)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		}
	}
}

func TestTokenCodec_Expired(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-DefaultTokenTTL - time.Second) }
	issuer := NewTokenCodec(testSecret, WithClock(past))
	raw, claims, err := issuer.Issue(Claims{UserID: 1, Email: "a@b.com", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Less(t, claims.Exp, time.Now().Unix())

	_, err = NewTokenCodec(testSecret).Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCodec_ExpirySecondBoundary(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	issuer := NewTokenCodec(testSecret, WithTTL(time.Hour), WithClock(func() time.Time { return issuedAt }))
	raw, claims, err := issuer.Issue(Claims{UserID: 1, Email: "a@b.com", Role: RoleInvestigator})
	require.NoError(t, err)
	exp := time.Unix(claims.Exp, 0)

	at := func(now time.Time) *TokenCodec {
		return NewTokenCodec(testSecret, WithClock(func() time.Time { return now }))
	}
	_, err = at(exp).Validate(raw)
	assert.NoError(t, err, "exp equal to now")
	_, err = at(exp.Add(500 * time.Millisecond)).Validate(raw)
	assert.NoError(t, err, "still within the exp second")
	_, err = at(exp.Add(time.Second)).Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	cases := map[string]string{
		"empty":          "",
		"one segment":    "abc",
		"two segments":   "abc.def",
		"four segments":  "a.b.c.d",
		"bad base64":     "!!!.???.***",
		"bad json":       base64.RawURLEncoding.EncodeToString([]byte("{")) + ".e30.sig",
		"foreign secret": mustIssue(t, NewTokenCodec("other"), RoleAdmin),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Validate(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenCodec_RejectsUnknownRole(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	raw := mustIssue(t, codec, Role("ROOT"))
	_, err := codec.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func mustIssue(t *testing.T, c *TokenCodec, role Role) string {
	t.Helper()
	raw, _, err := c.Issue(Claims{UserID: 9, Email: "z@z.z", Role: role})
	require.NoError(t, err)
	return raw
}
