package instrument

import "strings"

var (
	truthy = map[string]bool{"true": true, "t": true, "1": true, "yes": true, "y": true, "oui": true, "o": true}
	falsy  = map[string]bool{"false": true, "f": true, "0": true, "no": true, "n": true, "non": true}

	// canonical spellings an option code may use for yes / no
	yesCodes = map[string]bool{"oui": true, "yes": true, "true": true, "t": true, "1": true}
	noCodes  = map[string]bool{"non": true, "no": true, "false": true, "f": true, "0": true}
)

// ParseBoolish interprets the yes/no spellings found in stored records.
// ok is false when s is not a recognised boolean spelling.
func ParseBoolish(s string) (value, ok bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	if truthy[k] {
		return true, true
	}
	if falsy[k] {
		return false, true
	}
	return false, false
}

// IsYesCode reports whether an option code spells "yes".
func IsYesCode(code string) bool { return yesCodes[strings.ToLower(code)] }

// IsNoCode reports whether an option code spells "no".
func IsNoCode(code string) bool { return noCodes[strings.ToLower(code)] }
