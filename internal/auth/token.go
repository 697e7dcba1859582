package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role distinguishes the two authenticated actors.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
	// RoleAnonymous is the identity of an unauthenticated connection; it is
	// upgraded once a join command succeeds.
	RoleAnonymous Role = "anonymous"
)

// Identity is the verified subject of a token.
type Identity struct {
	Role      Role
	ID        string
	SessionID string
}

// Anonymous reports whether the identity carries no verified subject.
func (i Identity) Anonymous() bool {
	return i.Role == RoleAnonymous || i.Role == ""
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
}

// Verifier issues and validates HMAC-signed identity tokens. Registration /
// login is an external concern; this only binds a subject id to a role (and,
// for players, a session).
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewVerifier builds a Verifier from a shared secret. An empty secret gets a
// random one, which invalidates outstanding tokens on restart.
func NewVerifier(secret string, ttl time.Duration) *Verifier {
	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		_, _ = rand.Read(buf)
		key = []byte(hex.EncodeToString(buf))
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Verifier{secret: key, ttl: ttl, now: time.Now}
}

// Issue signs a token binding subjectID to a role, plus the session for
// players.
func (v *Verifier) Issue(role Role, subjectID, sessionID string) (string, error) {
	now := v.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		Role:      string(role),
		SessionID: sessionID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and yields its identity. Missing or invalid
// tokens are anonymous, not an error: unauthenticated connections are allowed
// until they issue a command that needs a subject.
func (v *Verifier) Verify(raw string) Identity {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{Role: RoleAnonymous}
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{Role: RoleAnonymous}
	}

	role := Role(claims.Role)
	if role != RoleHost && role != RolePlayer {
		return Identity{Role: RoleAnonymous}
	}
	return Identity{Role: role, ID: claims.Subject, SessionID: claims.SessionID}
}
