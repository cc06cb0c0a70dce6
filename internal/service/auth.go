package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tokengate/tokengate-go/internal/crypto"
	"github.com/tokengate/tokengate-go/internal/logging"
	"github.com/tokengate/tokengate-go/internal/model"
	"github.com/tokengate/tokengate-go/internal/repository"
)

var (
	ErrCredentialsRequired  = errors.New("account and password are required")
	ErrInvalidCredentials   = errors.New("invalid account or password")
	ErrPhoneCodeRequired    = errors.New("phone and verification code are required")
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrInvalidCode          = errors.New("invalid or expired verification code")
	ErrSignUpFieldsRequired = errors.New("email or phone, and password are required")
	ErrAccountExists        = errors.New("account already exists")
	ErrUnauthenticated      = errors.New("not authenticated")
)

// Sign-in methods, used as metric labels.
const (
	MethodPassword = "password"
	MethodPhone    = "phone"
	MethodSignUp   = "signup"
	MethodRefresh  = "refresh"
)

// TokenIssuer issues and verifies identity tokens.
type TokenIssuer interface {
	Issue(user model.UserInfo) (string, error)
	Verify(token string) (model.UserInfo, error)
}

// CodeVerifier produces and checks phone verification codes.
type CodeVerifier interface {
	Generate(phone string) (string, error)
	Validate(phone, code string) bool
}

// AuthService implements the sign-in, sign-up and token flows on top of an
// identity store.
type AuthService struct {
	users   repository.UserRepository
	tokens  TokenIssuer
	codes   CodeVerifier
	sender  CodeSender
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithCodeSender sets how verification codes reach the user. The default
// only logs them.
func WithCodeSender(sender CodeSender) Option {
	return func(s *AuthService) { s.sender = sender }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *AuthService) { s.metrics = r }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

// WithClock replaces time.Now for account timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, codes CodeVerifier, opts ...Option) *AuthService {
	s := &AuthService{
		users:   users,
		tokens:  tokens,
		codes:   codes,
		metrics: nopRecorder{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sender == nil {
		s.sender = &LogCodeSender{Logger: s.logger}
	}
	return s
}

// SignInWithPassword authenticates by email, phone number or username.
func (s *AuthService) SignInWithPassword(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	if req.Identifier == "" || req.Password == "" {
		return model.AuthResponse{}, ErrCredentialsRequired
	}

	acct, err := s.users.FindUserByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.SignIn(MethodPassword, ResultRejected)
			return model.AuthResponse{}, ErrInvalidCredentials
		}
		return model.AuthResponse{}, fmt.Errorf("finding account: %w", err)
	}

	if acct.PasswordHash == "" {
		s.metrics.SignIn(MethodPassword, ResultRejected)
		return model.AuthResponse{}, ErrInvalidCredentials
	}

	match, err := crypto.VerifyPassword(req.Password, acct.PasswordHash)
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("verifying password for %s: %w", acct.ID, err)
	}
	if !match {
		s.metrics.SignIn(MethodPassword, ResultRejected)
		return model.AuthResponse{}, ErrInvalidCredentials
	}

	return s.completeSignIn(ctx, acct, MethodPassword)
}

// SendVerificationCode generates the current code for phone and hands it to
// the configured CodeSender.
func (s *AuthService) SendVerificationCode(ctx context.Context, phone string) error {
	if !repository.IsPhoneNumber(phone) {
		return ErrInvalidPhone
	}

	code, err := s.codes.Generate(phone)
	if err != nil {
		return fmt.Errorf("generating verification code: %w", err)
	}

	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		return fmt.Errorf("sending verification code: %w", err)
	}
	return nil
}

// SignInWithPhone authenticates with a verification code. A phone number
// without an account gets one on first sign-in.
func (s *AuthService) SignInWithPhone(ctx context.Context, req model.PhoneLoginRequest) (model.AuthResponse, error) {
	if req.Phone == "" || req.Code == "" {
		return model.AuthResponse{}, ErrPhoneCodeRequired
	}
	if !repository.IsPhoneNumber(req.Phone) {
		return model.AuthResponse{}, ErrInvalidPhone
	}
	if !s.codes.Validate(req.Phone, req.Code) {
		s.metrics.SignIn(MethodPhone, ResultRejected)
		return model.AuthResponse{}, ErrInvalidCode
	}

	acct, err := s.users.FindUserByIdentifier(ctx, req.Phone)
	if errors.Is(err, repository.ErrUserNotFound) {
		acct, err = s.createPhoneAccount(ctx, req.Phone)
	}
	if err != nil {
		return model.AuthResponse{}, err
	}

	return s.completeSignIn(ctx, acct, MethodPhone)
}

func (s *AuthService) createPhoneAccount(ctx context.Context, phone string) (*model.Account, error) {
	now := repository.FormatTime(s.now())
	acct := &model.Account{
		UserInfo: model.UserInfo{
			ID:          "phone_" + phone,
			Phone:       phone,
			Name:        "User " + lastFour(phone),
			CreatedAt:   now,
			LastLoginAt: now,
		},
	}

	err := s.users.Create(ctx, acct)
	if errors.Is(err, repository.ErrDuplicateAccount) {
		// Lost a race with a concurrent first sign-in for the same phone.
		return s.users.GetByID(ctx, acct.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating phone account: %w", err)
	}
	return acct, nil
}

// SignUp registers a new account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, req model.SignUpRequest) (model.AuthResponse, error) {
	if (req.Email == "" && req.Phone == "") || req.Password == "" {
		return model.AuthResponse{}, ErrSignUpFieldsRequired
	}
	if req.Email != "" && repository.DetectIdentifierKind(req.Email) != repository.KindEmail {
		return model.AuthResponse{}, ErrInvalidEmail
	}
	if req.Phone != "" && !repository.IsPhoneNumber(req.Phone) {
		return model.AuthResponse{}, ErrInvalidPhone
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return model.AuthResponse{}, err
	}

	id := ulid.Make().String()
	name := req.Name
	if name == "" {
		name = "User " + lastFour(id)
	}

	now := repository.FormatTime(s.now())
	acct := &model.Account{
		UserInfo: model.UserInfo{
			ID:          id,
			Email:       req.Email,
			Phone:       req.Phone,
			Name:        name,
			CreatedAt:   now,
			LastLoginAt: now,
		},
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			return model.AuthResponse{}, ErrAccountExists
		}
		return model.AuthResponse{}, err
	}

	token, err := s.issue(acct.UserInfo)
	if err != nil {
		return model.AuthResponse{}, err
	}

	s.metrics.SignIn(MethodSignUp, ResultOK)
	s.log(ctx).Info("account created", "user_id", acct.ID)
	return model.AuthResponse{Token: token, User: acct.UserInfo}, nil
}

// Refresh issues a new token for the identity in token. The presented token
// stays valid until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, token string) (model.RefreshResponse, error) {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		s.metrics.SignIn(MethodRefresh, ResultRejected)
		return model.RefreshResponse{}, err
	}

	fresh, err := s.issue(user)
	if err != nil {
		return model.RefreshResponse{}, err
	}

	s.metrics.SignIn(MethodRefresh, ResultOK)
	return model.RefreshResponse{Token: fresh}, nil
}

// Authenticate verifies token and returns its identity. Every failure wraps
// ErrUnauthenticated; the reason is logged at debug level only.
func (s *AuthService) Authenticate(ctx context.Context, token string) (model.UserInfo, error) {
	if token == "" {
		return model.UserInfo{}, ErrUnauthenticated
	}

	user, err := s.tokens.Verify(token)
	s.metrics.TokenVerified(VerifyResult(err))
	if err != nil {
		s.log(ctx).Debug("token rejected", "reason", err)
		return model.UserInfo{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return user, nil
}

// CurrentUser is Authenticate plus the account timestamps from the store.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (model.UserInfo, error) {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return model.UserInfo{}, err
	}

	acct, err := s.users.GetByID(ctx, user.ID)
	switch {
	case err == nil:
		user.CreatedAt = acct.CreatedAt
		user.LastLoginAt = acct.LastLoginAt
	case !errors.Is(err, repository.ErrUserNotFound):
		s.log(ctx).Warn("loading account for current user", "user_id", user.ID, "error", err)
	}
	return user, nil
}

func (s *AuthService) completeSignIn(ctx context.Context, acct *model.Account, method string) (model.AuthResponse, error) {
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, acct.ID, now); err != nil {
		s.log(ctx).Warn("recording last login", "user_id", acct.ID, "error", err)
	}

	user := acct.UserInfo
	user.LastLoginAt = repository.FormatTime(now)

	token, err := s.issue(user)
	if err != nil {
		return model.AuthResponse{}, err
	}

	s.metrics.SignIn(method, ResultOK)
	s.log(ctx).Info("signed in", "user_id", user.ID, "method", method)
	return model.AuthResponse{Token: token, User: user}, nil
}

func (s *AuthService) issue(user model.UserInfo) (string, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	s.metrics.TokenIssued()
	return token, nil
}

func (s *AuthService) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

func lastFour(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
