// Package authpw provides email/password authentication with verification.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rallypoint/api/internal/store"
)

// AccountStore defines the storage interface for auth
type AccountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	GetAccountByID(ctx context.Context, id string) (store.Account, error)
	CreateAccount(ctx context.Context, account store.Account) error
	UpdateVerificationToken(ctx context.Context, accountID, token string, expiresAt time.Time) error
	VerifyAccountEmail(ctx context.Context, token string) error
}

// Service provides email/password authentication
type Service struct {
	store AccountStore
}

// NewService creates a new auth service
func NewService(store AccountStore) *Service {
	return &Service{store: store}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Email       string
	Phone       string
	Password    string
	DisplayName string
}

// SignUpResponse contains sign-up result
type SignUpResponse struct {
	AccountID           string
	VerificationToken   string
	RequiresEmailVerify bool
}

// SignUp creates a new account
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return nil, errors.New("email, password, and display name are required")
	}

	if len(req.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	_, err := s.store.GetAccountByEmail(ctx, req.Email)
	if err == nil {
		return nil, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verificationToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	account := store.Account{
		ID:                generateID(),
		DisplayName:       req.DisplayName,
		Email:             req.Email,
		Phone:             strings.TrimSpace(req.Phone),
		PasswordHash:      string(hash),
		IsEmailVerified:   false,
		VerificationToken: verificationToken,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	if err := s.store.UpdateVerificationToken(ctx, account.ID, verificationToken, expiresAt); err != nil {
		return nil, fmt.Errorf("set verification expiry: %w", err)
	}

	return &SignUpResponse{
		AccountID:           account.ID,
		VerificationToken:   verificationToken,
		RequiresEmailVerify: true,
	}, nil
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignInResponse contains sign-in result
type SignInResponse struct {
	Account        store.Account
	RequiresVerify bool
}

// SignIn authenticates an account
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errors.New("email and password are required")
	}

	account, err := s.store.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if !account.IsEmailVerified {
		return &SignInResponse{
			Account:        account,
			RequiresVerify: true,
		}, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return &SignInResponse{
		Account:        account,
		RequiresVerify: false,
	}, nil
}

// VerifyEmail verifies an email address using a token
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("verification token required")
	}

	if err := s.store.VerifyAccountEmail(ctx, token); err != nil {
		return errors.New("invalid or expired verification token")
	}

	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func generateID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "acct_" + hex.EncodeToString(buf)
}
