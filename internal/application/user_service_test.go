package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/microwave-booking/internal/persistence"
)

// stubUserStore implements UserRepository and CredentialStore.
type stubUserStore struct {
	users           map[string]UserCredentials
	order           []string
	passwordUpdates []string
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]UserCredentials)}
}

func (s *stubUserStore) CreateUser(ctx context.Context, credentials UserCredentials) error {
	for _, existing := range s.users {
		if strings.EqualFold(existing.User.Email, credentials.User.Email) {
			return persistence.ErrDuplicate
		}
	}
	s.users[credentials.User.ID] = credentials
	s.order = append(s.order, credentials.User.ID)
	return nil
}

func (s *stubUserStore) GetUser(ctx context.Context, id string) (User, error) {
	credentials, ok := s.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return credentials.User, nil
}

func (s *stubUserStore) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	for _, credentials := range s.users {
		if strings.EqualFold(credentials.User.Email, email) {
			return credentials, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (s *stubUserStore) UpdateUser(ctx context.Context, user User) error {
	credentials, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	credentials.User = user
	credentials.Disabled = user.Disabled
	s.users[user.ID] = credentials
	return nil
}

func (s *stubUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	credentials, ok := s.users[id]
	if !ok {
		return persistence.ErrNotFound
	}
	credentials.PasswordHash = passwordHash
	s.users[id] = credentials
	s.passwordUpdates = append(s.passwordUpdates, id)
	return nil
}

func (s *stubUserStore) DeleteUser(ctx context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *stubUserStore) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	for _, id := range s.order {
		if credentials, ok := s.users[id]; ok {
			out = append(out, credentials.User)
		}
	}
	return out, nil
}

var admin = Principal{UserID: "admin", IsAdmin: true}

func TestCreateUserHashesPassword(t *testing.T) {
	store := newStubUserStore()
	service := NewUserService(store, sequenceIDs("u"), fixedNow)

	user, err := service.CreateUser(context.Background(), CreateUserParams{
		Principal: admin,
		Input: UserInput{
			Email:       " Alice@Company.com ",
			DisplayName: "Alice",
			Password:    "correct horse",
		},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if user.Email != "alice@company.com" {
		t.Errorf("email = %q, want normalized", user.Email)
	}

	stored := store.users[user.ID]
	if stored.PasswordHash == "" || stored.PasswordHash == "correct horse" {
		t.Fatal("expected a derived password hash")
	}
	if err := VerifyPassword(stored.PasswordHash, "correct horse"); err != nil {
		t.Errorf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(stored.PasswordHash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	service := NewUserService(newStubUserStore(), sequenceIDs("u"), fixedNow)

	_, err := service.CreateUser(context.Background(), CreateUserParams{
		Principal: admin,
		Input:     UserInput{Email: "not-an-email", Password: "short"},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	for _, field := range []string{"email", "display_name", "password"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Errorf("expected field error for %q, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newStubUserStore()
	service := NewUserService(store, sequenceIDs("u"), fixedNow)

	input := UserInput{Email: "alice@company.com", DisplayName: "Alice", Password: "password1"}
	if _, err := service.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: input}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err := service.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: input})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateUserKeepsPasswordWhenOmitted(t *testing.T) {
	store := newStubUserStore()
	service := NewUserService(store, sequenceIDs("u"), fixedNow)

	created, err := service.CreateUser(context.Background(), CreateUserParams{
		Principal: admin,
		Input:     UserInput{Email: "alice@company.com", DisplayName: "Alice", Password: "password1"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	originalHash := store.users[created.ID].PasswordHash

	updated, err := service.UpdateUser(context.Background(), UpdateUserParams{
		Principal: admin,
		UserID:    created.ID,
		Input:     UserInput{Email: "alice@company.com", DisplayName: "Alice B.", IsAdmin: true},
	})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if updated.DisplayName != "Alice B." || !updated.IsAdmin {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if len(store.passwordUpdates) != 0 {
		t.Errorf("expected no password updates, got %v", store.passwordUpdates)
	}
	if store.users[created.ID].PasswordHash != originalHash {
		t.Error("password hash changed unexpectedly")
	}

	if _, err := service.UpdateUser(context.Background(), UpdateUserParams{
		Principal: admin,
		UserID:    created.ID,
		Input:     UserInput{Email: "alice@company.com", DisplayName: "Alice", Password: "newpassword"},
	}); err != nil {
		t.Fatalf("UpdateUser with password: %v", err)
	}
	if len(store.passwordUpdates) != 1 {
		t.Errorf("expected one password update, got %v", store.passwordUpdates)
	}
}

func TestDeleteUserGuards(t *testing.T) {
	store := newStubUserStore()
	service := NewUserService(store, sequenceIDs("u"), fixedNow)

	created, err := service.CreateUser(context.Background(), CreateUserParams{
		Principal: admin,
		Input:     UserInput{Email: "alice@company.com", DisplayName: "Alice", Password: "password1"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := service.DeleteUser(context.Background(), Principal{UserID: "u9"}, created.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-admin delete: err = %v, want ErrUnauthorized", err)
	}
	if err := service.DeleteUser(context.Background(), Principal{UserID: created.ID, IsAdmin: true}, created.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("self delete: err = %v, want ErrUnauthorized", err)
	}
	if err := service.DeleteUser(context.Background(), admin, created.ID); err != nil {
		t.Errorf("admin delete: %v", err)
	}
	if err := service.DeleteUser(context.Background(), admin, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("repeat delete: err = %v, want ErrNotFound", err)
	}
}

func TestListUsersRequiresAdmin(t *testing.T) {
	service := NewUserService(newStubUserStore(), sequenceIDs("u"), fixedNow)

	if _, err := service.ListUsers(context.Background(), Principal{UserID: "u1"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
