package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DefaultCodePeriod is how long one phone verification code window lasts.
const DefaultCodePeriod = 5 * time.Minute

// CodeGenerator derives time-based six digit verification codes per phone
// number. Codes are stateless: each phone gets its own TOTP key computed
// from the server secret, so nothing has to be stored between sending a code
// and checking it.
type CodeGenerator struct {
	key    []byte
	period time.Duration
	now    func() time.Time
}

// CodeOption configures a CodeGenerator.
type CodeOption func(*CodeGenerator)

// WithCodeClock replaces time.Now.
func WithCodeClock(now func() time.Time) CodeOption {
	return func(g *CodeGenerator) {
		g.now = now
	}
}

// WithCodePeriod overrides DefaultCodePeriod.
func WithCodePeriod(d time.Duration) CodeOption {
	return func(g *CodeGenerator) {
		g.period = d
	}
}

// NewCodeGenerator creates a CodeGenerator keyed by secret.
func NewCodeGenerator(secret string, opts ...CodeOption) (*CodeGenerator, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	g := &CodeGenerator{
		key:    []byte(secret),
		period: DefaultCodePeriod,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate returns the code currently valid for phone.
func (g *CodeGenerator) Generate(phone string) (string, error) {
	return totp.GenerateCodeCustom(g.totpSecret(phone), g.now(), g.validateOpts())
}

// Validate reports whether code is valid for phone now. The previous and
// next windows are accepted too.
func (g *CodeGenerator) Validate(phone, code string) bool {
	ok, err := totp.ValidateCustom(code, g.totpSecret(phone), g.now(), g.validateOpts())
	return err == nil && ok
}

func (g *CodeGenerator) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(g.period / time.Second),
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (g *CodeGenerator) totpSecret(phone string) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte("phone-verification:"))
	mac.Write([]byte(phone))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(mac.Sum(nil))
}
