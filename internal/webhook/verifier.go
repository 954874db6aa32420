package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"ms-marketplace/internal/logger"
)

// Verifier validates that an inbound webhook payload originated from the
// payment gateway. Signatures are HMAC-SHA256 over the raw request body with
// the shared secret; the header may carry either bare hex or a "sha256="
// prefixed digest. Some gateways send the plain shared secret as the header
// value instead of a digest, so that form is accepted too.
type Verifier struct {
	secret          string
	allowUnverified bool
	log             *logger.Logger
}

func NewVerifier(secret string, allowUnverified bool, log *logger.Logger) *Verifier {
	v := &Verifier{
		secret:          secret,
		allowUnverified: allowUnverified,
		log:             log,
	}
	if secret == "" && allowUnverified {
		log.LogSecurity("WEBHOOK", "Signature verification DISABLED (no secret, ALLOW_UNVERIFIED_WEBHOOKS=true) - never run this configuration in production")
	}
	return v
}

// Verify checks the signature header against the raw body. Financial events
// fail closed: a configured secret makes verification mandatory, and an empty
// secret only passes when the insecure flag was set explicitly.
func (v *Verifier) Verify(body []byte, signature string) bool {
	if v.secret == "" {
		if v.allowUnverified {
			v.log.LogSecurity("WEBHOOK", "Accepting unverified webhook (insecure mode)")
			return true
		}
		v.log.LogSecurity("WEBHOOK", "No webhook secret configured and insecure mode not enabled - rejecting")
		return false
	}

	if signature == "" {
		return false
	}

	// Plain shared-secret header form.
	if subtle.ConstantTimeCompare([]byte(signature), []byte(v.secret)) == 1 {
		return true
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	got := strings.TrimPrefix(signature, "sha256=")
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(expected))
}
