package signals

import "strings"

type compiledCategory struct {
	name     string
	keywords KeywordSet
}

// Categorizer assigns one topical category per item.
// Rules are checked in declared order; the first with any keyword match wins.
type Categorizer struct {
	rules []compiledCategory
}

// NewCategorizer compiles the ordered rule list
func NewCategorizer(rules []CategoryRule) *Categorizer {
	c := &Categorizer{rules: make([]compiledCategory, 0, len(rules))}
	for _, r := range rules {
		name := strings.ToLower(strings.TrimSpace(r.Category))
		if name == "" || name == CategoryGeneral {
			continue
		}
		c.rules = append(c.rules, compiledCategory{name: name, keywords: NewKeywordSet(r.Keywords)})
	}
	return c
}

// Categorize returns the category for title+body, or CategoryGeneral
func (c *Categorizer) Categorize(title, body string) string {
	text := newNormalizedText(title + " " + body)
	for _, r := range c.rules {
		if r.keywords.match(text) {
			return r.name
		}
	}
	return CategoryGeneral
}

// Categories returns category names in precedence order, ending with general
func (c *Categorizer) Categories() []string {
	out := make([]string, 0, len(c.rules)+1)
	for _, r := range c.rules {
		out = append(out, r.name)
	}
	return append(out, CategoryGeneral)
}
