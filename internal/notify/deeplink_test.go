package notify

import (
	"strings"
	"testing"
)

func TestDeepLinkSigner_SignAndVerify(t *testing.T) {
	s := NewDeepLinkSigner("https://review.example.com/", "top-secret")
	link := s.Sign("planning-documents/ABC-123/report.pdf", "ABC-123")

	if !strings.HasPrefix(link, "https://review.example.com/review?project=ABC-123&key=") {
		t.Errorf("unexpected link shape: %s", link)
	}

	idx := strings.LastIndex(link, "sig=")
	if idx < 0 {
		t.Fatal("signed link must contain a sig= parameter")
	}
	sig := link[idx+len("sig="):]

	if !s.Verify("planning-documents/ABC-123/report.pdf", "ABC-123", sig) {
		t.Error("Verify must accept the signature Sign produced")
	}
	if s.Verify("planning-documents/ABC-123/report.pdf", "OTHER-PROJECT", sig) {
		t.Error("Verify must reject a signature replayed against a different project")
	}
	if s.Verify("planning-documents/ABC-123/report.pdf", "ABC-123", "tampered") {
		t.Error("Verify must reject a tampered signature")
	}
}

func TestDeepLinkSigner_EmptySecretDisablesSigning(t *testing.T) {
	s := NewDeepLinkSigner("https://review.example.com", "")
	link := s.Sign("k", "p")
	if strings.Contains(link, "sig=") {
		t.Error("empty secret must produce an unsigned link")
	}
	if !s.Verify("k", "p", "anything") {
		t.Error("Verify must accept any signature when signing is disabled")
	}
}
