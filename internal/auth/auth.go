package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/cocreate-app/cocreate/backend/internal/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

const minPasswordLength = 6

// Service issues and validates session tokens. It only gates room
// entry; nothing else in the relay reads user identity.
type Service struct {
	store  *db.Database
	secret []byte
	ttl    time.Duration
}

func New(store *db.Database, secret string, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (s *Service) Register(email, username, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}

	existing, err := s.store.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.store.CreateUser(email, username, string(hash)); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Login checks the password and returns a signed session token.
func (s *Service) Login(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   fmt.Sprint(user.ID),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.store.CreateSession(token, user.ID, now.Add(s.ttl)); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Authorize validates a token against both the signature and the
// session record, so revoked sessions fail even before expiry.
func (s *Service) Authorize(tokenStr string) error {
	if tokenStr == "" {
		return ErrInvalidToken
	}

	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}

	session, err := s.store.GetSession(tokenStr)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if session == nil || time.Now().After(session.ExpiresAt) {
		return ErrInvalidToken
	}
	return nil
}

// Logout revokes the session record for a token.
func (s *Service) Logout(tokenStr string) error {
	return s.store.DeleteSession(tokenStr)
}
