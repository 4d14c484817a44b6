package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
)

// Validator authenticates inbound webhook requests against the account
// auth token shared with the provider.
type Validator struct {
	authToken string
}

func NewValidator(authToken string) *Validator {
	return &Validator{authToken: authToken}
}

// Valid reports whether signature matches the request. url must be the
// exact public URL the provider called, params the parsed form body.
// A missing signature or an unconfigured auth token never validates.
func (v *Validator) Valid(url string, params map[string]string, signature string) bool {
	if v.authToken == "" || signature == "" {
		return false
	}
	expected := Sign(v.authToken, url, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the provider's signature scheme: the URL concatenated
// with every form key and value in lexicographic key order, HMAC-SHA1
// under the auth token, base64 encoded.
func Sign(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(url))
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte(params[k]))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
