// Package authn gates the admin HTTP surface (pkg/jacis/server) with a
// small salted-credential store, grounded on the teacher's pkg/auth
// SCRAM-SHA-256 key derivation (PBKDF2 + HMAC-SHA256) but trimmed to plain
// password verification, since the admin surface terminates a TLS-fronted
// HTTP session rather than negotiating a SCRAM challenge-response.
//
// The caller API (§6 of spec.md) is a plain Go library with no
// authentication concept; this package protects only the diagnostic admin
// surface layered outside it.
package authn

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength     = 16
	iterationCount = 4096
	keyLength      = 32
)

var (
	ErrInvalidCredentials = errors.New("authn: invalid username or password")
	ErrUserExists         = errors.New("authn: user already exists")
	ErrUserNotFound       = errors.New("authn: user not found")
)

// Role gates which admin operations a session may perform.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadOnly Role = "readOnly"
)

type credential struct {
	salt      []byte
	storedKey []byte
	role      Role
	createdAt time.Time
}

// Store is a concurrency-safe credential store.
type Store struct {
	mu    sync.RWMutex
	users map[string]*credential
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{users: make(map[string]*credential)}
}

func derive(password string, salt []byte) []byte {
	saltedPassword := pbkdf2.Key([]byte(password), salt, iterationCount, keyLength, sha256.New)
	mac := hmac.New(sha256.New, saltedPassword)
	mac.Write([]byte("jacis admin stored key"))
	return mac.Sum(nil)
}

// CreateUser registers username with the given password and role.
func (s *Store) CreateUser(username, password string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return ErrUserExists
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("authn: generate salt: %w", err)
	}
	s.users[username] = &credential{
		salt:      salt,
		storedKey: derive(password, salt),
		role:      role,
		createdAt: time.Now(),
	}
	return nil
}

// DeleteUser removes username.
func (s *Store) DeleteUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; !exists {
		return ErrUserNotFound
	}
	delete(s.users, username)
	return nil
}

// Authenticate verifies username/password, returning the user's role.
func (s *Store) Authenticate(username, password string) (Role, error) {
	s.mu.RLock()
	cred, exists := s.users[username]
	s.mu.RUnlock()
	if !exists {
		return "", ErrInvalidCredentials
	}
	if !hmac.Equal(derive(password, cred.salt), cred.storedKey) {
		return "", ErrInvalidCredentials
	}
	return cred.role, nil
}
