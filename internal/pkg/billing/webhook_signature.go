package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed webhook timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyStripeWebhookSignature checks a `stripe-signature` header of the form
// `t=<unix>,v1=<hex>[,v1=<hex>...]` against the shared webhook secret. The
// signed message is `<t>.<payload>` with HMAC-SHA256.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	return verifyStripeSignatureAt(payload, signatureHeader, webhookSecret, DefaultSignatureTolerance, time.Now())
}

func verifyStripeSignatureAt(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration, now time.Time) bool {
	header := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if header == "" || secret == "" {
		return false
	}

	var timestamp int64 = -1
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(kv[1]))
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}

	if timestamp < 0 || len(candidates) == 0 {
		return false
	}
	age := now.Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range candidates {
		if hmac.Equal(expected, sig) {
			return true
		}
	}
	return false
}

// SignStripePayload produces a valid `stripe-signature` header value for a
// payload; used by tests and the outbound webhook registration flow.
func SignStripePayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
