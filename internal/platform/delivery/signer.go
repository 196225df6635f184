package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// SignPayload computes an HMAC-SHA256 signature of the payload using the
// channel secret, returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature returns true when the hex-encoded signature matches the
// HMAC-SHA256 of payload under the given secret. Receivers use this to
// authenticate deliveries.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// IdempotencyKey derives a stable key from the subscription, resource
// reference, and resource version so receivers can deduplicate retried
// deliveries of the same resource version.
func IdempotencyKey(subscriptionID uuid.UUID, resourceRef string, version int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s",
		subscriptionID, resourceRef, strconv.Itoa(version))))
	return hex.EncodeToString(sum[:])
}
