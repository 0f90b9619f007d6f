package diagnose

import "strings"

// UnguardedOptions reports whether the first "Options" directive in an
// .htaccess file appears before any "<IfModule" guard. Hosts that disallow
// Options overrides answer such files with a 500.
//
// This is a plain substring check, not a parser. Comments, other guard blocks
// and later directives are ignored, so both false positives and false
// negatives are expected.
func UnguardedOptions(content string) bool {
	i := strings.Index(content, "Options")
	if i < 0 {
		return false
	}
	return !strings.Contains(content[:i], "<IfModule")
}
