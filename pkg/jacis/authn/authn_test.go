package authn

import "testing"

func TestCreateAndAuthenticate(t *testing.T) {
	s := NewStore()
	if err := s.CreateUser("alice", "correct horse", RoleAdmin); err != nil {
		t.Fatalf("create user: %v", err)
	}

	role, err := s.Authenticate("alice", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if role != RoleAdmin {
		t.Fatalf("expected RoleAdmin, got %v", role)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	s := NewStore()
	_ = s.CreateUser("bob", "hunter2", RoleReadOnly)

	if _, err := s.Authenticate("bob", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	s := NewStore()
	if _, err := s.Authenticate("nobody", "whatever"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateUserTwiceFails(t *testing.T) {
	s := NewStore()
	_ = s.CreateUser("carol", "pw", RoleReadOnly)
	if err := s.CreateUser("carol", "pw2", RoleAdmin); err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	s := NewStore()
	_ = s.CreateUser("dave", "pw", RoleReadOnly)
	if err := s.DeleteUser("dave"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteUser("dave"); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.Authenticate("dave", "pw"); err != ErrInvalidCredentials {
		t.Fatalf("expected deleted user to no longer authenticate, got %v", err)
	}
}
