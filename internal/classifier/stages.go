// Package classifier implements C4: the six-stage cheap-to-expensive
// rejection cascade that turns extracted document text into a confirmed or
// rejected Further-Information-request match.
package classifier

import (
	"regexp"
	"strings"
)

// filenameBlocklist holds substrings, matched against the filename with all
// non-alphanumeric characters stripped, that mark a filename as a response
// to, or decision on, an FI request rather than the request itself.
var filenameBlocklist = []string{
	"responsetofi",
	"firesponse",
	"decisionnotice",
	"grantofpermission",
	"furtherinformationresponse",
	"applicantresponse",
	"fireceived",
}

// structuralMarkers are consultant-report structure cues.
var structuralMarkers = []string{
	"table of contents",
	"executive summary",
	"this report has been prepared by",
	"prepared on behalf of",
}

// numberedHeading matches headings like "1.1 Introduction".
var numberedHeading = regexp.MustCompile(`(?m)^\s*\d+\.\d+\s+[A-Z][a-zA-Z ]+`)

const (
	pageCharEstimate = 2500
	maxEstimatedPages = 100
)

// stageFilenameReject is Stage 0.
func stageFilenameReject(fileName string) (reject bool) {
	normalized := alphanumericOnly(fileName)
	for _, marker := range filenameBlocklist {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// alphanumericOnly lowercases s and strips everything but letters and digits,
// so markers match regardless of spacing, punctuation, or underscores in the
// source filename (e.g. "F.I._received" and "fi received" both normalize to
// "fireceived").
func alphanumericOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stageLengthReject is Stage 1: documents estimated over 100 pages are
// reports, not short request letters. chars/2500 == 100 is the boundary;
// only chars/2500 > 100 rejects (edge case: the 101-page
// candidate rejects, the exact-100 candidate passes).
func stageLengthReject(charCount int) bool {
	return charCount > maxEstimatedPages*pageCharEstimate
}

// stageStructuralReject is Stage 2.
func stageStructuralReject(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range structuralMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return numberedHeading.MatchString(text)
}

// cheapFilterPrefix returns the leading slice of text sent to Stage 3's cheap
// classifier.
func cheapFilterPrefix(text string, n int) string {
	if n <= 0 {
		n = 5000
	}
	if len(text) <= n {
		return text
	}
	return text[:n]
}
