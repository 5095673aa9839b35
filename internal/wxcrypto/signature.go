// Package wxcrypto implements the WeCom callback signature and message
// encryption scheme. All functions are pure and safe for concurrent use.
package wxcrypto

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by the platform protocol.
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Sign computes the callback signature: the four inputs sorted byte-wise,
// concatenated without separator, SHA-1 hashed and hex encoded in lowercase.
// The result does not depend on argument order.
func Sign(token, timestamp, nonce, body string) string {
	parts := []string{token, timestamp, nonce, body}
	sort.Strings(parts)

	sum := sha1.Sum([]byte(strings.Join(parts, ""))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Verify reports whether expected matches the signature of the inputs.
// The comparison runs in constant time.
func Verify(expected, token, timestamp, nonce, body string) bool {
	actual := Sign(token, timestamp, nonce, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}

// SignJSAPI computes the JS-SDK page signature for wx.config and
// wx.agentConfig. timestamp is in Unix seconds.
func SignJSAPI(ticket, nonceStr string, timestamp int64, pageURL string) string {
	var b strings.Builder
	b.WriteString("jsapi_ticket=")
	b.WriteString(ticket)
	b.WriteString("&noncestr=")
	b.WriteString(nonceStr)
	b.WriteString("&timestamp=")
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString("&url=")
	b.WriteString(pageURL)

	sum := sha1.Sum([]byte(b.String())) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
