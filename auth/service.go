package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims is the JWT payload issued on login. The role claim backs the
// role endpoint used by the browser for admin toggling.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and validates bearer tokens against the account store.
type Service struct {
	store  *Store
	secret []byte
	expiry time.Duration
}

// NewService builds an auth service signing HS256 tokens with the given
// secret and expiry.
func NewService(store *Store, secret string, expiry time.Duration) *Service {
	return &Service{
		store:  store,
		secret: []byte(secret),
		expiry: expiry,
	}
}

// SignUp creates an account with a hashed password.
func (s *Service) SignUp(ctx context.Context, name, username, email, password, role string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password required", ErrInvalidCredentials)
	}
	if role == "" {
		role = "user"
	}

	account := &Account{
		ID:           strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:         strings.TrimSpace(name),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hashPassword(password),
		Role:         role,
	}

	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login verifies credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	account, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	hashed := hashPassword(password)
	if subtle.ConstantTimeCompare([]byte(hashed), []byte(account.PasswordHash)) != 1 {
		return "", ErrInvalidCredentials
	}

	claims := Claims{
		Username: account.Username,
		Role:     account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
		},
	}
	if s.expiry <= 0 {
		claims.ExpiresAt = nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and verifies a bearer token.
func (s *Service) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Role returns the role claim of a valid token.
func (s *Service) Role(token string) (string, error) {
	claims, err := s.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.Role, nil
}

// hashPassword hashes a password as unpadded base64url over SHA-256.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
