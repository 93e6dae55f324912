// Package identity maps external contact details to existing accounts.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AccountFinder is the slice of the store the resolver needs.
type AccountFinder interface {
	FindAccountIDByPhone(ctx context.Context, phone string) (string, error)
	FindAccountIDByEmail(ctx context.Context, email string) (string, error)
}

// Resolver decides whether a contact corresponds to an existing account.
// It is read-only and safe to call redundantly.
type Resolver struct {
	store AccountFinder
}

func NewResolver(store AccountFinder) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up phone first, then email. Matching is by exact string
// equality; phone numbers are not normalized. Returns "" when no account
// matches, which is the expected external-invitee case, not an error.
func (r *Resolver) Resolve(ctx context.Context, phone, email string) (string, error) {
	phone = strings.TrimSpace(phone)
	email = strings.TrimSpace(email)

	if phone != "" {
		accountID, err := r.store.FindAccountIDByPhone(ctx, phone)
		if err == nil {
			return accountID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("resolve by phone: %w", err)
		}
	}

	if email != "" {
		accountID, err := r.store.FindAccountIDByEmail(ctx, email)
		if err == nil {
			return accountID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("resolve by email: %w", err)
		}
	}

	return "", nil
}
