package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of msg under secret, the format
// the gateway uses for both checkout and webhook signatures.
func Sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// PaymentMessage is the signed payload of a checkout result.
func PaymentMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// VerifyPayment checks a checkout signature over "order_id|payment_id".
func VerifyPayment(secret, orderID, paymentID, signature string) bool {
	return equal(Sign(secret, PaymentMessage(orderID, paymentID)), signature)
}

// VerifyWebhook checks a webhook signature over the exact request body.
func VerifyWebhook(secret string, body []byte, signature string) bool {
	return equal(Sign(secret, body), signature)
}

// equal compares in constant time for equal-length inputs.
func equal(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}
