package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "identity", AdminRole: "admin"}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	customerID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), time.Hour, AccessTokenPayload{CustomerID: customerID, Role: "admin"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	got, err := claims.CustomerID()
	require.NoError(t, err)
	assert.Equal(t, customerID, got)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{CustomerID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseAccessTokenHonoursLeeway(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-70*time.Second), time.Minute, AccessTokenPayload{CustomerID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, ErrTokenExpired)

	cfg.Leeway = time.Minute
	_, err = ParseAccessToken(cfg, token)
	assert.NoError(t, err)
}

func TestParseAccessTokenChecksAudienceWhenConfigured(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Audience = "storefront"
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{CustomerID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.NoError(t, err)

	other := cfg
	other.Audience = "backoffice"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsWrongIssuerAndSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{CustomerID: uuid.New()})
	require.NoError(t, err)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)

	other = cfg
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsNonUUIDSubject(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, signed)
	assert.Error(t, err)
}

func TestMintValidatesInput(t *testing.T) {
	cfg := testJWTConfig()
	_, err := MintAccessToken(config.JWTConfig{}, time.Now(), time.Hour, AccessTokenPayload{CustomerID: uuid.New()})
	assert.Error(t, err)
	_, err = MintAccessToken(cfg, time.Now(), 0, AccessTokenPayload{CustomerID: uuid.New()})
	assert.Error(t, err)
	_, err = MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{})
	assert.Error(t, err)
}
