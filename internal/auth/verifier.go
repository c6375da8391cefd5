package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMisconfigured means the verification secret is absent. This is a
	// deployment fault, not a bad credential, and is reported distinctly.
	ErrMisconfigured = errors.New("access token secret is not configured")

	// ErrAuthenticationFailed covers every way a presented token can be bad
	// (malformed, expired, wrong signature). The distinction is deliberately
	// not exposed to the client.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Identity is the stable per-session identity derived from a verified token.
type Identity struct {
	UserID string
	Role   string
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// TokenFromRequest extracts the bearer credential from the handshake: the
// `token` query field first, then the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return ""
}

func (v *Verifier) Authenticate(token string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, ErrMisconfigured
	}
	if token == "" {
		return Identity{}, ErrAuthenticationFailed
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrAuthenticationFailed
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrAuthenticationFailed
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return Identity{}, ErrAuthenticationFailed
	}

	return Identity{UserID: sub, Role: role}, nil
}
