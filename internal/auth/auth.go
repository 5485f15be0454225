// Package auth issues and verifies the admin bearer tokens that gate every
// mutating endpoint.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when the email or password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a token is missing, malformed, expired or forged.
	ErrInvalidToken = errors.New("invalid token")
)

// RoleAdmin is the only role the portal issues.
const RoleAdmin = "admin"

const issuer = "jobportal-api"

// Identity is the principal carried by a verified token.
type Identity struct {
	Subject string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// IsAdmin returns true if the identity may perform mutations.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Claims are the JWT claims of an admin token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Token is an issued bearer token.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Config holds the admin credential and signing settings.
type Config struct {
	Secret string
	TTL    time.Duration
	Email  string
	// Password is compared in constant time. Ignored when PasswordHash is set.
	Password string
	// PasswordHash is a bcrypt hash of the admin password.
	PasswordHash string
}

// Authenticator checks admin credentials and signs HS256 tokens.
type Authenticator struct {
	secret       []byte
	ttl          time.Duration
	email        string
	password     []byte
	passwordHash []byte
	now          func() time.Time
}

// New creates an Authenticator.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("auth: admin email is required")
	}
	if cfg.Password == "" && cfg.PasswordHash == "" {
		return nil, errors.New("auth: admin password is required")
	}
	if cfg.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth: invalid password hash: %w", err)
		}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		secret:       []byte(cfg.Secret),
		ttl:          ttl,
		email:        cfg.Email,
		password:     []byte(cfg.Password),
		passwordHash: []byte(cfg.PasswordHash),
		now:          time.Now,
	}, nil
}

// Login verifies the admin credentials and issues a token.
func (a *Authenticator) Login(email, password string) (*Token, error) {
	if !strings.EqualFold(strings.TrimSpace(email), a.email) || !a.checkPassword(password) {
		return nil, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		Email: a.email,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return &Token{Token: signed, ExpiresAt: expires.UTC()}, nil
}

func (a *Authenticator) checkPassword(password string) bool {
	if len(a.passwordHash) > 0 {
		return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare(a.password, []byte(password)) == 1
}

// Authorize verifies a raw token and returns its identity.
func (a *Authenticator) Authorize(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{Subject: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
