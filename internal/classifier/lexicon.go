package classifier

import "strings"

// typeLexicon is the fixed per-type token set a validation_quote must match
// at least one of, lower-cased.
var typeLexicon = map[string][]string{
	"acoustic": {"acoustic", "noise", "sound", "vibration", "decibel", "db(a)"},
	"transport": {"transport", "traffic", "parking", "travel", "highway", "vehicular"},
	"ecological": {"ecological", "ecology", "biodiversity", "habitat", "species", "wildlife"},
	"flood": {"flood", "drainage", "suds", "hydrology", "surface water", "foul water"},
	"heritage": {"heritage", "archaeological", "historic", "conservation", "listed building"},
	"lighting": {"lighting", "light pollution", "illumination", "luminance"},
}

// validateQuote reports whether quote contains at least one lexicon token for
// docType. An unknown docType has no lexicon and fails closed.
func validateQuote(docType, quote string) bool {
	tokens, ok := typeLexicon[strings.ToLower(docType)]
	if !ok {
		return false
	}
	lower := strings.ToLower(quote)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
