package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Account types carried in the "type" claim.
const (
	TypeUser  = "user"
	TypeAdmin = "admin"
)

type Claims struct {
	Type        string       `json:"type"`
	Email       string       `json:"email,omitempty"`
	Name        string       `json:"name,omitempty"`
	Username    string       `json:"username,omitempty"`
	Role        string       `json:"role,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token was issued to an admin account.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Type == TypeAdmin
}

type JWTManager struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

func NewJWTManager(secret string, expiry time.Duration, issuer string) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		now:    time.Now,
	}
}

// UserIdentity is the subset of a user account encoded into user tokens.
type UserIdentity struct {
	ID    string
	Email string
	Name  string
}

// AdminIdentity is the subset of an admin account encoded into admin tokens.
type AdminIdentity struct {
	ID          string
	Username    string
	Email       string
	Role        Role
	Permissions Permissions
}

func (m *JWTManager) GenerateUser(u UserIdentity) (string, error) {
	if u.ID == "" {
		return "", ErrInvalidToken
	}
	return m.sign(&Claims{
		Type:  TypeUser,
		Email: u.Email,
		Name:  u.Name,
	}, u.ID)
}

func (m *JWTManager) GenerateAdmin(a AdminIdentity) (string, error) {
	if a.ID == "" || a.Role == "" {
		return "", ErrInvalidToken
	}
	perms := a.Permissions
	return m.sign(&Claims{
		Type:        TypeAdmin,
		Email:       a.Email,
		Username:    a.Username,
		Role:        string(a.Role),
		Permissions: &perms,
	}, a.ID)
}

// Refresh issues a new token carrying the same identity claims with a fresh expiry.
func (m *JWTManager) Refresh(claims *Claims) (string, error) {
	if claims == nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	next := *claims
	next.RegisteredClaims = jwt.RegisteredClaims{}
	return m.sign(&next, claims.Subject)
}

func (m *JWTManager) sign(claims *Claims, subject string) (string, error) {
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != TypeUser && claims.Type != TypeAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func TokenFromHeader(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}
