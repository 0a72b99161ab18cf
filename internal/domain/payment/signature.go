package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sign computes the gateway callback signature:
// HMAC-SHA256(secret, "{gatewayOrderID}|{gatewayPaymentID}") as lowercase hex.
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares it against
// the supplied one in constant time.
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
