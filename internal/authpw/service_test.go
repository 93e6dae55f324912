package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"rallypoint/api/internal/store"
)

// mockAccountStore is a mock implementation of AccountStore for testing
type mockAccountStore struct {
	accounts      map[string]store.Account
	emailIndex    map[string]string // email -> accountID
	verifications map[string]store.Account
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts:      make(map[string]store.Account),
		emailIndex:    make(map[string]string),
		verifications: make(map[string]store.Account),
	}
}

func (m *mockAccountStore) GetAccountByEmail(ctx context.Context, email string) (store.Account, error) {
	if accountID, ok := m.emailIndex[email]; ok {
		return m.accounts[accountID], nil
	}
	return store.Account{}, errors.New("account not found")
}

func (m *mockAccountStore) GetAccountByID(ctx context.Context, id string) (store.Account, error) {
	if account, ok := m.accounts[id]; ok {
		return account, nil
	}
	return store.Account{}, errors.New("account not found")
}

func (m *mockAccountStore) CreateAccount(ctx context.Context, account store.Account) error {
	m.accounts[account.ID] = account
	m.emailIndex[account.Email] = account.ID
	return nil
}

func (m *mockAccountStore) UpdateVerificationToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	if account, ok := m.accounts[accountID]; ok {
		account.VerificationToken = token
		account.VerificationExpiresAt = &expiresAt
		m.accounts[accountID] = account
		m.verifications[token] = account
	}
	return nil
}

func (m *mockAccountStore) VerifyAccountEmail(ctx context.Context, token string) error {
	if account, ok := m.verifications[token]; ok {
		account.IsEmailVerified = true
		m.accounts[account.ID] = account
		m.emailIndex[account.Email] = account.ID
		return nil
	}
	return errors.New("invalid token")
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockAccountStore()
	svc := NewService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "test@example.com",
			Phone:       "555-0100",
			Password:    "password123",
			DisplayName: "Test Player",
		}
		resp, err := svc.SignUp(ctx, req)
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if resp.AccountID == "" {
			t.Error("expected account ID, got empty string")
		}
		if resp.VerificationToken == "" {
			t.Error("expected verification token, got empty string")
		}
		if !resp.RequiresEmailVerify {
			t.Error("expected RequiresEmailVerify to be true")
		}

		account, err := mockStore.GetAccountByID(ctx, resp.AccountID)
		if err != nil {
			t.Fatalf("created account not found: %v", err)
		}
		if account.Phone != "555-0100" {
			t.Errorf("expected phone 555-0100, got %q", account.Phone)
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "test@example.com",
			Password:    "password123",
			DisplayName: "Other Player",
		}
		_, err := svc.SignUp(ctx, req)
		if err == nil {
			t.Fatal("expected error for duplicate email")
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "short@example.com",
			Password:    "short",
			DisplayName: "Short",
		}
		_, err := svc.SignUp(ctx, req)
		if err == nil {
			t.Fatal("expected error for short password")
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockAccountStore()
	svc := NewService(mockStore)

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "player@example.com",
		Password:    "password123",
		DisplayName: "Player",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	t.Run("unverified account requires verify", func(t *testing.T) {
		signIn, err := svc.SignIn(ctx, SignInRequest{
			Email:    "player@example.com",
			Password: "password123",
		})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if !signIn.RequiresVerify {
			t.Error("expected RequiresVerify for unverified account")
		}
	})

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	t.Run("verified account signs in", func(t *testing.T) {
		signIn, err := svc.SignIn(ctx, SignInRequest{
			Email:    "player@example.com",
			Password: "password123",
		})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if signIn.RequiresVerify {
			t.Error("did not expect RequiresVerify after verification")
		}
		if signIn.Account.Email != "player@example.com" {
			t.Errorf("unexpected account: %+v", signIn.Account)
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{
			Email:    "player@example.com",
			Password: "wrong-password",
		})
		if err == nil {
			t.Fatal("expected error for wrong password")
		}
	})
}

func TestVerifyEmailInvalidToken(t *testing.T) {
	svc := NewService(newMockAccountStore())
	if err := svc.VerifyEmail(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for invalid token")
	}
}
