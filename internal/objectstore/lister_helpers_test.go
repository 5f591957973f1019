package objectstore

import "testing"

func TestProjectIDFromKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"planning-documents/ABC-123/report.pdf", "ABC-123"},
		{"planning-documents/nested/path/ABC-123/decision.docx", "ABC-123"},
		{"planning-documents/ABC-123/sub/decision.docx", "sub"},
		{"planning-documents/only-one-segment", ""},
		{"planning-documents/ABC-123/report.txt", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := ProjectIDFromKey(c.key); got != c.want {
			t.Errorf("ProjectIDFromKey(%q) = %q, want %q", c.key, got, c.want)
		}
	}
}

func TestFileNameFromKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"planning-documents/ABC-123/report.pdf", "report.pdf"},
		{"a/b/c/decision.docx", "decision.docx"},
		{"bare.pdf", "bare.pdf"},
	}
	for _, c := range cases {
		if got := FileNameFromKey(c.key); got != c.want {
			t.Errorf("FileNameFromKey(%q) = %q, want %q", c.key, got, c.want)
		}
	}
}
