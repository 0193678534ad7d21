package refs

import (
	"regexp"
	"strings"
)

var (
	dateShape  = regexp.MustCompile(`^\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}$`)
	phoneShape = regexp.MustCompile(`^\+?\d{10,15}$`)
	clockShape = regexp.MustCompile(`^\d{1,2}:\d{2}`)
	smallInt   = regexp.MustCompile(`^\d{1,3}$`)
)

// looksLikeNonReference reports identifiers shaped like a date, a phone
// number, a clock time or a short bare number.
func looksLikeNonReference(id string) bool {
	if dateShape.MatchString(id) || clockShape.MatchString(id) || smallInt.MatchString(id) {
		return true
	}
	compact := strings.NewReplacer("-", "", " ", "").Replace(id)
	return phoneShape.MatchString(compact)
}
