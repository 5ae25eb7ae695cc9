package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnauthenticated is returned when an operation requires a signed-in user.
	ErrUnauthenticated = errors.New("user is not authenticated")
	// ErrInvalidCredentials is returned when the provided credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an already-taken email.
	ErrUserExists = errors.New("user already exists")
)

const sessionTTL = 24 * time.Hour

// Identity resolves the currently signed-in user, if any.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Service provides authentication backed by the users table and a
// file-persisted session token, so separate invocations share a session.
type Service struct {
	db          *sql.DB
	secret      []byte
	sessionPath string
}

// NewService creates a new authentication Service.
func NewService(db *sql.DB, secret []byte, sessionPath string) *Service {
	return &Service{
		db:          db,
		secret:      secret,
		sessionPath: sessionPath,
	}
}

// SignUp registers a new user.
func (s *Service) SignUp(ctx context.Context, email, password string) error {
	var existing string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ?", email).Scan(&existing)
	if err == nil {
		return ErrUserExists
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), email, string(hash), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SignIn verifies the credentials, issues a session token and persists it.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	var id, hash string
	err := s.db.QueryRowContext(ctx, "SELECT id, password_hash FROM users WHERE email = ?", email).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.createSessionToken(id)
	if err != nil {
		return "", err
	}

	if err := s.saveSession(token); err != nil {
		return "", err
	}
	return token, nil
}

// SignOut discards the persisted session, if one exists.
func (s *Service) SignOut() error {
	err := os.Remove(s.sessionPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// CurrentUserID returns the user id from the persisted session token.
// The second return value is false when no valid session exists.
func (s *Service) CurrentUserID(ctx context.Context) (string, bool) {
	raw, err := os.ReadFile(s.sessionPath)
	if err != nil {
		return "", false
	}

	token, err := jwt.Parse(string(raw), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// createSessionToken generates a short-lived JWT for the session.
func (s *Service) createSessionToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(sessionTTL).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (s *Service) saveSession(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.sessionPath), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(s.sessionPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}
