package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for refresh secrets
	"encoding/hex"  // hex encoding functions
	"time"          // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // jti generation for issued tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived, self-contained and verified purely
// cryptographically: the embedded tenant, role and permission claims are the
// source of truth for the request, so no database round-trip is needed on
// the hot path.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// AccessClaims is the decoded payload of a verified access token.
type AccessClaims struct {
	UserID      uint64   // subject (sub)
	TenantID    uint64   // tenant_id claim
	Roles       []string // role slugs held at issuance
	Permissions []string // flattened effective permission set at issuance
}

// RefreshToken pairs the signed envelope handed to the client with the
// opaque secret persisted (hashed) server-side.  The envelope carries the
// secret as its jti claim; validation checks the signature first and the
// stored row second, so revocation always wins over a valid signature.
type RefreshToken struct {
	Token  string    // signed envelope returned to the client
	Secret string    // raw opaque secret; only its SHA-256 hash is stored
	Exp    time.Time // UTC expiration time
}

// RefreshClaims is the decoded payload of a verified refresh envelope.
type RefreshClaims struct {
	UserID   uint64 // subject (sub)
	TenantID uint64 // tenant_id claim
	Secret   string // opaque secret carried as jti
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT includes
// the subject (sub), tenant_id, role slugs, the flattened permission set, a
// unique jti, expiration (exp) and issued-at (iat) claims.
func NewAccessToken(secret string, userID, tenantID uint64, roles, permissions []string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":         userID,
		"tenant_id":   tenantID,
		"roles":       roles,
		"permissions": permissions,
		"jti":         uuid.NewString(),
		"exp":         exp.Unix(),
		"iat":         time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken checks signature and expiry and returns the decoded
// claims, or nil on any failure (bad signature, wrong algorithm, malformed
// or expired token).  Callers must not distinguish between failure causes.
func VerifyAccessToken(secret, raw string) *AccessClaims {
	claims := parseHS256(secret, raw)
	if claims == nil {
		return nil
	}
	return &AccessClaims{
		UserID:      claimUint64(claims, "sub"),
		TenantID:    claimUint64(claims, "tenant_id"),
		Roles:       claimStrings(claims, "roles"),
		Permissions: claimStrings(claims, "permissions"),
	}
}

// NewRefreshSecret returns a cryptographically random 256-bit secret
// encoded as 64 hex characters.  Its SHA-256 hash is what the refresh
// token store persists.
func NewRefreshSecret() (string, error) {
	return randomHex(32)
}

// HashRefreshSecret returns the SHA-256 hash of the raw secret as a hex
// string.  Storing only the hash prevents attackers from using stolen
// database rows to refresh sessions.
func HashRefreshSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewRefreshToken signs a long-lived envelope around an opaque secret.  The
// envelope lets the server reject garbage and expired refresh attempts
// without touching the database; the persisted row still decides revocation.
func NewRefreshToken(secret string, userID, tenantID uint64, opaque string, ttlDays int) (RefreshToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	claims := jwt.MapClaims{
		"sub":       userID,
		"tenant_id": tenantID,
		"jti":       opaque,
		"typ":       "refresh",
		"exp":       exp.Unix(),
		"iat":       time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: signed, Secret: opaque, Exp: exp}, nil
}

// VerifyRefreshToken validates a refresh envelope and returns its claims,
// or nil on any failure.  Tokens not marked typ=refresh are rejected so an
// access token can never be replayed as a refresh credential.
func VerifyRefreshToken(secret, raw string) *RefreshClaims {
	claims := parseHS256(secret, raw)
	if claims == nil {
		return nil
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return nil
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	return &RefreshClaims{
		UserID:   claimUint64(claims, "sub"),
		TenantID: claimUint64(claims, "tenant_id"),
		Secret:   jti,
	}
}

// parseHS256 parses and validates a token signed with our secret, enforcing
// the HMAC signing method.  It returns nil when the token is invalid for
// any reason.
func parseHS256(secret, raw string) jwt.MapClaims {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	return claims
}

// claimUint64 reads a numeric claim.  JSON numbers decode as float64; some
// encoders emit numeric strings, so both forms are accepted.
func claimUint64(claims jwt.MapClaims, key string) uint64 {
	switch v := claims[key].(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case string:
		var n uint64
		for _, ch := range v {
			if ch < '0' || ch > '9' {
				return 0
			}
			n = n*10 + uint64(ch-'0')
		}
		return n
	}
	return 0
}

// claimStrings reads a string-array claim, tolerating the []interface{}
// shape produced by JSON decoding.
func claimStrings(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
