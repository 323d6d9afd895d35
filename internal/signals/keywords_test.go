package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesFieldFold(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		keywords []string
		want     bool
	}{
		{"plural field", "Semiconductors", []string{"semiconductor"}, true},
		{"case folded", "TECHNOLOGY", []string{"technology"}, true},
		{"keyword inside word", "Biotechnology", []string{"technology"}, false},
		{"keyword prefix", "Biotechnology", []string{"biotech"}, true},
		{"phrase with symbol", "Oil & Gas E&P", []string{"oil & gas"}, true},
		{"phrase needs consecutive words", "Healthcare Information Services", []string{"information technology"}, false},
		{"phrase matches", "Information Technology Services", []string{"information technology"}, true},
		{"empty field", "", []string{"technology"}, false},
		{"blank keyword", "Software", []string{" "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesFieldFold(tt.value, tt.keywords))
		})
	}
}
