package refs

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// LibraryVersion identifies the built-in pattern catalog.
const LibraryVersion = "2025.2"

// Family is the organization family a pattern belongs to.
type Family string

const (
	FamilyUNAgency        Family = "un-agency"
	FamilyWorldBank       Family = "world-bank"
	FamilyDevelopmentBank Family = "development-bank"
	FamilyNGO             Family = "ngo"
	FamilyGeneric         Family = "generic"
	FamilyUnknown         Family = "unknown"
)

// DefaultOrder is the order pattern groups are scanned in when the context
// does not point at a family.
var DefaultOrder = []Family{
	FamilyUNAgency,
	FamilyWorldBank,
	FamilyDevelopmentBank,
	FamilyNGO,
	FamilyGeneric,
}

func (f Family) valid() bool {
	for _, known := range DefaultOrder {
		if f == known {
			return true
		}
	}
	return false
}

// Normalize names how a match becomes an identifier.
type Normalize string

const (
	// NormalizeVerbatim keeps the first capture group (or the whole match) as written.
	NormalizeVerbatim Normalize = "verbatim"
	// NormalizeUpper is NormalizeVerbatim upper-cased.
	NormalizeUpper Normalize = "upper"
	// NormalizeSolicitation joins prefix, year and sequence groups as PREFIX/YEAR/SEQ.
	NormalizeSolicitation Normalize = "solicitation"
)

var (
	ErrUnknownFamily    = errors.New("unknown organization family")
	ErrUnknownNormalize = errors.New("unknown normalization rule")
	ErrBadConfidence    = errors.New("base confidence must be in (0,1]")
	ErrMissingGroup     = errors.New("capture group missing from match")
)

// PatternSpec is the declarative form of a pattern, as it appears in the
// built-in catalog and in configuration.
type PatternSpec struct {
	Family      Family    `yaml:"family" json:"family"`
	Expr        string    `yaml:"regex" json:"regex"`
	Confidence  float64   `yaml:"confidence" json:"confidence"`
	Description string    `yaml:"description" json:"description"`
	Normalize   Normalize `yaml:"normalize,omitempty" json:"normalize,omitempty"`
}

// Pattern is a compiled, immutable PatternSpec.
type Pattern struct {
	spec PatternSpec
	re   *regexp.Regexp
}

func (p Pattern) Family() Family          { return p.spec.Family }
func (p Pattern) Expr() string            { return p.spec.Expr }
func (p Pattern) BaseConfidence() float64 { return p.spec.Confidence }
func (p Pattern) Description() string     { return p.spec.Description }
func (p Pattern) Normalize() Normalize    { return p.spec.Normalize }

// PatternError reports a spec that was left out of a library.
type PatternError struct {
	Spec PatternSpec
	Err  error
}

func (e PatternError) Error() string {
	return fmt.Sprintf("pattern %q (%s): %v", e.Spec.Description, e.Spec.Family, e.Err)
}

func (e PatternError) Unwrap() error { return e.Err }

func compilePattern(spec PatternSpec) (Pattern, error) {
	if spec.Normalize == "" {
		spec.Normalize = NormalizeVerbatim
	}
	if !spec.Family.valid() {
		return Pattern{}, fmt.Errorf("%w: %q", ErrUnknownFamily, spec.Family)
	}
	if spec.Confidence <= 0 || spec.Confidence > 1 {
		return Pattern{}, fmt.Errorf("%w: got %v", ErrBadConfidence, spec.Confidence)
	}
	re, err := regexp.Compile("(?i)" + spec.Expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile: %w", err)
	}
	switch spec.Normalize {
	case NormalizeVerbatim, NormalizeUpper:
	case NormalizeSolicitation:
		if re.NumSubexp() < 3 {
			return Pattern{}, fmt.Errorf("solicitation rule needs 3 capture groups, expression has %d", re.NumSubexp())
		}
	default:
		return Pattern{}, fmt.Errorf("%w: %q", ErrUnknownNormalize, spec.Normalize)
	}
	return Pattern{spec: spec, re: re}, nil
}

// identifier turns one submatch index slice into an identifier.
func (p Pattern) identifier(text string, loc []int) (string, error) {
	group := func(i int) string {
		if 2*i+1 >= len(loc) || loc[2*i] < 0 {
			return ""
		}
		return text[loc[2*i]:loc[2*i+1]]
	}

	switch p.spec.Normalize {
	case NormalizeSolicitation:
		prefix, year, seq := group(1), group(2), group(3)
		if prefix == "" || year == "" || seq == "" {
			return "", ErrMissingGroup
		}
		return strings.ToUpper(prefix) + "/" + year + "/" + seq, nil
	case NormalizeUpper:
		id := group(1)
		if id == "" {
			id = group(0)
		}
		return strings.ToUpper(strings.TrimSpace(id)), nil
	default:
		id := group(1)
		if id == "" {
			id = group(0)
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return "", ErrMissingGroup
		}
		return id, nil
	}
}

// Library is an immutable set of compiled patterns grouped by family.
type Library struct {
	version  string
	groups   map[Family][]Pattern
	rejected []PatternError
}

// NewLibrary compiles specs. Specs that fail validation are left out and
// reported by Rejected; they never prevent the library from being built.
func NewLibrary(version string, specs []PatternSpec) *Library {
	lib := &Library{
		version: version,
		groups:  make(map[Family][]Pattern, len(DefaultOrder)),
	}
	for _, spec := range specs {
		p, err := compilePattern(spec)
		if err != nil {
			lib.rejected = append(lib.rejected, PatternError{Spec: spec, Err: err})
			continue
		}
		lib.groups[p.spec.Family] = append(lib.groups[p.spec.Family], p)
	}
	return lib
}

// Extend returns a new library holding l's patterns followed by specs.
func (l *Library) Extend(version string, specs []PatternSpec) *Library {
	all := make([]PatternSpec, 0, l.Len()+len(specs))
	for _, p := range l.All() {
		all = append(all, p.spec)
	}
	all = append(all, specs...)
	ext := NewLibrary(version, all)
	ext.rejected = append(append([]PatternError(nil), l.rejected...), ext.rejected...)
	return ext
}

func (l *Library) Version() string { return l.version }

// Patterns returns the patterns of one family in catalog order.
func (l *Library) Patterns(f Family) []Pattern {
	return append([]Pattern(nil), l.groups[f]...)
}

// All returns every pattern in DefaultOrder.
func (l *Library) All() []Pattern {
	var out []Pattern
	for _, f := range DefaultOrder {
		out = append(out, l.groups[f]...)
	}
	return out
}

func (l *Library) Len() int {
	n := 0
	for _, g := range l.groups {
		n += len(g)
	}
	return n
}

// Rejected lists the specs that did not make it into the library.
func (l *Library) Rejected() []PatternError {
	return append([]PatternError(nil), l.rejected...)
}

// order returns the scan order with detected moved to the front.
func order(detected Family) []Family {
	if !detected.valid() {
		return DefaultOrder
	}
	out := make([]Family, 0, len(DefaultOrder))
	out = append(out, detected)
	for _, f := range DefaultOrder {
		if f != detected {
			out = append(out, f)
		}
	}
	return out
}

// DefaultSpecs is the built-in catalog.
var DefaultSpecs = []PatternSpec{
	// UN agencies
	{FamilyUNAgency, `\b(RFP|RFQ|ITB|EOI|RFI)[/\-\s]*(\d{4})[/\-](\d{3,4})\b`, 0.95, "UN solicitation (RFP/RFQ/ITB/EOI/RFI) with year and sequence", NormalizeSolicitation},
	{FamilyUNAgency, `\b(UNDP-[A-Z]{2,4}-\d{4,6})\b`, 0.98, "UNDP country office reference", NormalizeUpper},
	{FamilyUNAgency, `\b(UN[A-Z]{2,4}[/\-]\d{4}[/\-]\d{3,4})\b`, 0.90, "UN agency reference (UNICEF/UNHCR style)", NormalizeUpper},
	{FamilyUNAgency, `\b([A-Z]{3,5}[/\-]\d{4}[/\-][A-Z]{2,4}[/\-]\d{3,4})\b`, 0.85, "Extended UN agency reference", NormalizeVerbatim},

	// World Bank
	{FamilyWorldBank, `\b(P\d{6})\b`, 0.95, "World Bank project ID", NormalizeUpper},
	{FamilyWorldBank, `\b(TF\d{6})\b`, 0.90, "World Bank trust fund", NormalizeUpper},
	{FamilyWorldBank, `\b(IBRD\d{5})\b`, 0.88, "IBRD loan number", NormalizeUpper},
	{FamilyWorldBank, `\b(WB[/\-]\d{4}[/\-]\d{3,4})\b`, 0.85, "World Bank procurement reference", NormalizeUpper},

	// Development banks
	{FamilyDevelopmentBank, `\b(ADB[/\-]\d{4}[/\-]\d{3,4})\b`, 0.90, "Asian Development Bank reference", NormalizeUpper},
	{FamilyDevelopmentBank, `\b(AfDB[/\-]\d{4}[/\-]\d{3,4})\b`, 0.90, "African Development Bank reference", NormalizeVerbatim},
	{FamilyDevelopmentBank, `\b([A-Z]{3,5}DB[/\-]\d{4}[/\-]\d{3,4})\b`, 0.85, "Regional development bank reference", NormalizeVerbatim},

	// NGOs
	{FamilyNGO, `\b([A-Z]{2,4}[/\-]\d{4}[/\-][A-Z]{3,6}[/\-]\d{3,4})\b`, 0.90, "NGO reference with country code", NormalizeVerbatim},
	{FamilyNGO, `\b([A-Z]{3,5}-\d{4}-\d{3,4})\b`, 0.85, "NGO project reference", NormalizeVerbatim},
	{FamilyNGO, `\b(REF[\-/]\d{4}[\-/]\d{3,4})\b`, 0.80, "Generic NGO reference", NormalizeUpper},
	{FamilyNGO, `\b([A-Z]{2,4}\d{6,8})\b`, 0.75, "NGO alphanumeric reference", NormalizeVerbatim},

	// Generic
	{FamilyGeneric, `\b(\d{4}[\-/]\d{3,4})\b`, 0.60, "Year-sequence format", NormalizeVerbatim},
	{FamilyGeneric, `\b([A-Z]{2,4}\d{4,8})\b`, 0.55, "Letter-number combination", NormalizeVerbatim},
	{FamilyGeneric, `\b(\d{6,8})\b`, 0.50, "Numeric reference", NormalizeVerbatim},
	{FamilyGeneric, `\b([A-Z]{2,4}[\-/][A-Z]{2,4}[\-/]\d{3,6})\b`, 0.65, "Multi-part reference", NormalizeVerbatim},
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the process-wide library built from DefaultSpecs.
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLib = NewLibrary(LibraryVersion, DefaultSpecs)
	})
	return defaultLib
}
