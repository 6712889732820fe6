package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"buildtrack/internal/rbac"
)

// CookieName returns the session cookie name, COOKIE_NAME or "token".
func CookieName() string {
	if s := os.Getenv("COOKIE_NAME"); s != "" {
		return s
	}
	return "token"
}

func parseTTL() time.Duration {
	if s := os.Getenv("JWT_EXPIRES"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 7 * 24 * time.Hour
}

// TokenTTL is the lifetime of a freshly signed session token.
func TokenTTL() time.Duration { return parseTTL() }

// Sign issues an HS256 token carrying the session identity.
func Sign(s Session) (string, error) {
	key := []byte(os.Getenv("SESSION_SECRET"))
	now := time.Now()
	claims := jwt.MapClaims{
		"id":    s.ID,
		"name":  s.Name,
		"role":  string(s.Role),
		"email": s.Email,
		"exp":   now.Add(parseTTL()).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// Verify checks the signature and expiry of a token and returns the session
// it carries.
func Verify(tokenStr string) (Session, error) {
	key := []byte(os.Getenv("SESSION_SECRET"))
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Session{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, errors.New("invalid claims")
	}
	id, _ := mapc["id"].(string)
	name, _ := mapc["name"].(string)
	role, _ := mapc["role"].(string)
	email, _ := mapc["email"].(string)
	if id == "" || role == "" {
		return Session{}, errors.New("invalid claims")
	}
	return Session{ID: id, Name: name, Role: rbac.Role(role), Email: email}, nil
}
