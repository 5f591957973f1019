package classifier

import "testing"

func TestStageFilenameReject(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"Response to FI Request.pdf", true},
		{"Decision Notice - Grant.pdf", true},
		{"Acoustic Report Rev2.pdf", false},
		{"Further Information Response.docx", true},
		{"20251250W_F.I._received_Noise_Impact_Assessment_report.pdf", true},
	}
	for _, c := range cases {
		if got := stageFilenameReject(c.name); got != c.want {
			t.Errorf("stageFilenameReject(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestStageLengthReject_Boundary(t *testing.T) {
	if stageLengthReject(100 * pageCharEstimate) {
		t.Error("exactly 100 estimated pages must not reject")
	}
	if !stageLengthReject(100*pageCharEstimate + 1) {
		t.Error("just over 100 estimated pages must reject")
	}
}

func TestStageStructuralReject(t *testing.T) {
	if !stageStructuralReject("TABLE OF CONTENTS\n1. Intro") {
		t.Error("table of contents marker must reject")
	}
	if !stageStructuralReject("1.1 Introduction\nSome body text follows.") {
		t.Error("numbered heading must reject")
	}
	if stageStructuralReject("Dear Sir, please find enclosed our response to item 3 of your request.") {
		t.Error("plain letter text must not reject")
	}
}

func TestCheapFilterPrefix(t *testing.T) {
	text := "abcdefghij"
	if got := cheapFilterPrefix(text, 4); got != "abcd" {
		t.Errorf("cheapFilterPrefix truncated = %q, want %q", got, "abcd")
	}
	if got := cheapFilterPrefix(text, 0); got != text {
		t.Errorf("cheapFilterPrefix with n<=0 should default and return full short text, got %q", got)
	}
	if got := cheapFilterPrefix(text, 100); got != text {
		t.Errorf("cheapFilterPrefix with n > len(text) should return text unchanged, got %q", got)
	}
}

func TestValidateQuote(t *testing.T) {
	if !validateQuote("acoustic", "The assessment found the noise levels exceed 55dB(A).") {
		t.Error("quote containing a lexicon token must validate")
	}
	if validateQuote("acoustic", "The applicant should clarify parking arrangements.") {
		t.Error("quote with no lexicon token must not validate")
	}
	if validateQuote("unknown-type", "anything at all") {
		t.Error("unknown doc type must fail closed")
	}
}
