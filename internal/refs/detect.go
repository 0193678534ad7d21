package refs

import (
	"regexp"
	"strings"

	"github.com/david/proposaland/internal/textnorm"
)

type familyIndicators struct {
	family Family
	re     *regexp.Regexp
}

// Checked in this order; the first family with a hit wins.
var detectionOrder = []familyIndicators{
	{FamilyUNAgency, wordSet("undp", "unicef", "unhcr", "wfp", "who", "unfpa", "unops",
		"united nations", "un global", "procurement notice")},
	{FamilyWorldBank, wordSet("world bank", "ibrd", "ida", "ifc", "miga", "worldbank.org")},
	{FamilyNGO, wordSet("save the children", "mercy corps", "oxfam", "care", "irc",
		"plan international", "world vision", "actionaid", "msf")},
	{FamilyDevelopmentBank, wordSet("asian development bank", "adb", "african development bank",
		"afdb", "inter-american development bank", "iadb", "european bank")},
}

// DetectFamily names the organization family hinted at by context. When the
// context carries no indicator the text itself is consulted.
func DetectFamily(context, text string) Family {
	if f := detectIn(context); f != FamilyUnknown {
		return f
	}
	return detectIn(text)
}

func detectIn(s string) Family {
	if strings.TrimSpace(s) == "" {
		return FamilyUnknown
	}
	folded := textnorm.Fold(s)
	for _, fi := range detectionOrder {
		if fi.re.MatchString(folded) {
			return fi.family
		}
	}
	return FamilyUnknown
}
