package signals

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/specula/internal/common"
)

// DefaultStopwords are capitalised abbreviations never treated as identifiers
var DefaultStopwords = []string{"A", "I", "AM", "PM", "CEO", "CFO", "CTO", "IPO", "AI", "ML"}

// discoveryNoise is only applied in discovery mode, where bare capitalised
// tokens are far noisier than in registry-backed detection
var discoveryNoise = []string{
	"US", "USA", "UK", "EU", "UN", "FDA", "SEC", "FTC", "DOJ", "FED", "GDP", "CPI",
	"ETF", "EPS", "ESG", "IT", "HR", "PR", "TV", "EV", "OK", "NEW", "THE", "AND",
	"FOR", "NYSE", "AMEX", "Q", "YOY", "QOQ", "LLC", "INC", "LTD", "PLC", "CORP",
}

var (
	// maximal runs of A-Z; runs longer than 5 are rejected after matching
	upperRunPattern = regexp.MustCompile(`[A-Z]+`)

	// $ACME or PREFIX:ACME; prefixes outside common.KnownExchanges are rejected later
	prefixedPattern = regexp.MustCompile(`(?:\$|\b[A-Z]+:)[A-Z]{1,5}\b`)

	// bare all-caps tokens in original-case text, discovery mode only
	bareCapsPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
)

// Detector extracts instrument identifiers from free text
type Detector struct {
	stopwords map[string]struct{}
	noise     map[string]struct{}
}

// NewDetector creates a detector with the default stopwords plus extra
func NewDetector(extra ...string) *Detector {
	d := &Detector{
		stopwords: make(map[string]struct{}, len(DefaultStopwords)+len(extra)),
		noise:     make(map[string]struct{}, len(discoveryNoise)),
	}
	for _, w := range DefaultStopwords {
		d.stopwords[w] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToUpper(strings.TrimSpace(w)); w != "" {
			d.stopwords[w] = struct{}{}
		}
	}
	for _, w := range discoveryNoise {
		d.noise[w] = struct{}{}
	}
	return d
}

// IsStopword reports whether id is excluded from detection
func (d *Detector) IsStopword(id string) bool {
	_, ok := d.stopwords[strings.ToUpper(id)]
	return ok
}

// Detect returns the sorted set of registered identifiers mentioned in text
func (d *Detector) Detect(text string, reg *Registry) []string {
	if reg == nil || reg.Len() == 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	found := make(map[string]struct{})
	upper := strings.ToUpper(text)

	accept := func(candidate string) {
		if !reg.IsKnown(candidate) || d.IsStopword(candidate) {
			return
		}
		found[candidate] = struct{}{}
	}

	// (a) maximal uppercase runs of 1-5 letters
	for _, run := range upperRunPattern.FindAllString(upper, -1) {
		if len(run) <= common.MaxIdentifierLength {
			accept(run)
		}
	}

	// (b) cashtags and exchange-prefixed tokens
	for _, code := range prefixedCodes(upper) {
		accept(code)
	}

	// (d) display-name substring matches
	lower := strings.ToLower(text)
	for name, id := range reg.names {
		if strings.Contains(lower, name) {
			accept(id)
		}
	}

	return sortedKeys(found)
}

// Discover returns identifiers that look like tickers but are not registered.
// Prefixed tokens ($ZYX, NYSE:ZYX) always qualify; bare tokens need 2-5
// capital letters in the original text. Stopwords are filtered as in Detect.
func (d *Detector) Discover(text string, reg *Registry) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	found := make(map[string]struct{})
	accept := func(candidate string, prefixed bool) {
		if !common.IsIdentifier(candidate) || d.IsStopword(candidate) {
			return
		}
		if reg != nil && reg.IsKnown(candidate) {
			return
		}
		if _, noisy := d.noise[candidate]; noisy && !prefixed {
			return
		}
		found[candidate] = struct{}{}
	}

	for _, code := range prefixedCodes(text) {
		accept(code, true)
	}
	for _, token := range bareCapsPattern.FindAllString(text, -1) {
		accept(token, false)
	}

	return sortedKeys(found)
}

// prefixedCodes returns the codes of cashtags and tokens qualified by a known
// exchange, so "LSE:ACME" or "RE:ACME" do not count as prefixed mentions
func prefixedCodes(text string) []string {
	var codes []string
	for _, token := range prefixedPattern.FindAllString(text, -1) {
		t := common.ParseTicker(token)
		if t.Code == "" || (t.Exchange != "" && !t.HasKnownExchange()) {
			continue
		}
		codes = append(codes, t.Code)
	}
	return codes
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
