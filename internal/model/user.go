package model

// UserInfo is the identity carried through a token. Timestamps are RFC 3339
// strings supplied by the identity store; they are not part of the token.
type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	CreatedAt   string `json:"createdAt"`
	LastLoginAt string `json:"lastLoginAt"`
}

// Account is a persisted identity. Username, Email and Phone are unique when
// non-empty. PasswordHash is an Argon2id PHC string, empty for accounts
// created through phone verification.
type Account struct {
	UserInfo
	Username     string
	PasswordHash string
}

// LoginRequest represents a password sign-in. Identifier may be an email,
// a phone number or a username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// PhoneCodeRequest asks for a verification code to be sent.
type PhoneCodeRequest struct {
	Phone string `json:"phone"`
}

// PhoneLoginRequest represents a verification-code sign-in.
type PhoneLoginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// SignUpRequest represents an account registration.
type SignUpRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthResponse is returned by every successful sign-in.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// RefreshResponse carries a newly issued token.
type RefreshResponse struct {
	Token string `json:"token"`
}
