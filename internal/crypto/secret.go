package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// MinSecretBytes is the shortest signing secret the server accepts.
const MinSecretBytes = 32

var ErrSecretTooShort = fmt.Errorf("secret must be at least %d bytes", MinSecretBytes)

var errNonPositiveSize = errors.New("secret size must be positive")

// GenerateSecret returns n random bytes encoded as unpadded Base64URL,
// suitable for JWT_SECRET.
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", errNonPositiveSize
	}
	if n < MinSecretBytes {
		return "", ErrSecretTooShort
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
