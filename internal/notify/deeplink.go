package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// DeepLinkSigner produces HMAC-signed deep links into the review UI, so a
// link can't be forged or replayed against an unrelated object.
type DeepLinkSigner struct {
	base   string
	secret []byte
}

// NewDeepLinkSigner creates a signer. An empty secret disables signing and
// Sign returns plain (unsigned) links, suitable for local/dev configs.
func NewDeepLinkSigner(base, secret string) *DeepLinkSigner {
	return &DeepLinkSigner{base: strings.TrimRight(base, "/"), secret: []byte(secret)}
}

// Sign returns a deep link for objectKey/projectID with an HMAC-SHA256
// signature over "objectKey\x00projectID" appended as a query parameter.
func (s *DeepLinkSigner) Sign(objectKey, projectID string) string {
	link := fmt.Sprintf("%s/review?project=%s&key=%s", s.base, projectID, objectKey)
	if len(s.secret) == 0 {
		return link
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(objectKey))
	mac.Write([]byte{0})
	mac.Write([]byte(projectID))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return link + "&sig=" + sig
}

// Verify reports whether sig is the correct HMAC for objectKey/projectID.
func (s *DeepLinkSigner) Verify(objectKey, projectID, sig string) bool {
	if len(s.secret) == 0 {
		return true
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(objectKey))
	mac.Write([]byte{0})
	mac.Write([]byte(projectID))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
