package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/tokengate/tokengate-go/internal/model"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateAccount = errors.New("account already exists")
)

// UserRepository is the identity store the auth service depends on.
// Implementations must be safe for concurrent use.
type UserRepository interface {
	// FindUserByIdentifier looks an account up by email, phone number or
	// username, whichever the identifier looks like.
	FindUserByIdentifier(ctx context.Context, identifier string) (*model.Account, error)
	GetByID(ctx context.Context, id string) (*model.Account, error)
	Create(ctx context.Context, acct *model.Account) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// IdentifierKind is the account column an identifier is matched against.
type IdentifierKind int

const (
	KindUsername IdentifierKind = iota
	KindEmail
	KindPhone
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// DetectIdentifierKind classifies identifier. Anything that is neither an
// email address nor a mainland China mobile number is a username.
func DetectIdentifierKind(identifier string) IdentifierKind {
	switch {
	case emailPattern.MatchString(identifier):
		return KindEmail
	case phonePattern.MatchString(identifier):
		return KindPhone
	default:
		return KindUsername
	}
}

// IsPhoneNumber reports whether s is a mobile number codes can be sent to.
func IsPhoneNumber(s string) bool {
	return phonePattern.MatchString(s)
}

func (k IdentifierKind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	default:
		return "username"
	}
}

// FormatTime renders a timestamp the way accounts store it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
