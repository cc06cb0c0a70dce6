package service

import (
	"context"
	"errors"
	"time"

	"github.com/tokengate/tokengate-go/internal/crypto"
	"github.com/tokengate/tokengate-go/internal/model"
	"github.com/tokengate/tokengate-go/internal/repository"
)

// Demo account credentials, matching the hints on the front-end login page.
const (
	DemoUsername = "testuser"
	DemoEmail    = "test@example.com"
	DemoPhone    = "13800138000"
	DemoPassword = "password123"
)

// SeedDemoAccount creates the demo account unless it already exists.
func SeedDemoAccount(ctx context.Context, users repository.UserRepository, now time.Time) error {
	hash, err := crypto.HashPassword(DemoPassword)
	if err != nil {
		return err
	}

	ts := repository.FormatTime(now)
	acct := &model.Account{
		UserInfo: model.UserInfo{
			ID:          "1",
			Email:       DemoEmail,
			Phone:       DemoPhone,
			Name:        "Test User",
			CreatedAt:   ts,
			LastLoginAt: ts,
		},
		Username:     DemoUsername,
		PasswordHash: hash,
	}

	if err := users.Create(ctx, acct); err != nil && !errors.Is(err, repository.ErrDuplicateAccount) {
		return err
	}
	return nil
}
