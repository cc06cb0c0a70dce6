package service

import (
	"errors"

	"github.com/tokengate/tokengate-go/internal/crypto"
)

// Outcome labels shared by sign-in and verification metrics.
const (
	ResultOK               = "ok"
	ResultRejected         = "rejected"
	ResultMalformedToken   = "malformed_token"
	ResultSignature        = "signature_mismatch"
	ResultMalformedPayload = "malformed_payload"
	ResultExpired          = "expired"
)

// Recorder receives auth events for metrics.
type Recorder interface {
	TokenIssued()
	TokenVerified(result string)
	SignIn(method, result string)
}

type nopRecorder struct{}

func (nopRecorder) TokenIssued()          {}
func (nopRecorder) TokenVerified(string)  {}
func (nopRecorder) SignIn(string, string) {}

// VerifyResult maps a token verification error to its metric label.
func VerifyResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, crypto.ErrMalformedToken):
		return ResultMalformedToken
	case errors.Is(err, crypto.ErrSignatureMismatch):
		return ResultSignature
	case errors.Is(err, crypto.ErrExpired):
		return ResultExpired
	default:
		return ResultMalformedPayload
	}
}
