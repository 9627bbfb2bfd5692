package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates an opaque client token and resolves the user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// ErrInvalidToken signals the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// JWTVerifier validates HMAC-signed JWTs and reads the user id from the sub claim.
type JWTVerifier struct {
	secret []byte
	alg    string
}

// NewJWTVerifier constructs a verifier for the given HMAC secret.
// Supported algorithms: HS256 (default), HS384, HS512.
func NewJWTVerifier(secret []byte, alg string) (*JWTVerifier, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "":
		alg = "HS256"
	case "HS256", "HS384", "HS512":
		alg = strings.ToUpper(strings.TrimSpace(alg))
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: secret, alg: alg}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}

	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// Only the HMAC family is accepted; anything else is an attack surface.
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		if t.Method.Alg() != v.alg {
			return nil, fmt.Errorf("alg mismatch: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// NewStaticVerifier constructs a verifier over a fixed token to user mapping.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	users := make(map[string]string, len(tokens))
	for token, userID := range tokens {
		users[token] = userID
	}
	return &StaticVerifier{users: users}
}

// StaticVerifier resolves tokens from an in-memory map (dev and testing).
type StaticVerifier struct {
	users map[string]string
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	userID, ok := v.users[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
