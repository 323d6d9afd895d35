// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// Ticker represents a parsed instrument identifier, optionally exchange-qualified.
// Format: EXCHANGE:CODE (e.g., "NYSE:ACME", "NASDAQ:ZYX") or $CODE or CODE
type Ticker struct {
	// Exchange is the exchange code (e.g., "NYSE", "NASDAQ", "AMEX"), empty when unqualified
	Exchange string
	// Code is the instrument identifier (e.g., "ACME")
	Code string
	// Raw is the original ticker string
	Raw string
}

// KnownExchanges lists the exchange prefixes recognised in free text.
var KnownExchanges = map[string]bool{
	"NYSE":   true,
	"NASDAQ": true,
	"AMEX":   true,
}

// MaxIdentifierLength is the longest identifier accepted (1-5 letters)
const MaxIdentifierLength = 5

// IsIdentifier reports whether s is 1-5 uppercase ASCII letters
func IsIdentifier(s string) bool {
	if len(s) == 0 || len(s) > MaxIdentifierLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// ParseTicker parses an identifier with optional prefix.
// Supports formats:
//   - "NYSE:ACME" -> Exchange="NYSE", Code="ACME"
//   - "$acme" -> Exchange="", Code="ACME"
//   - "ACME" -> Exchange="", Code="ACME"
//
// Code is empty when the remainder is not a valid identifier.
func ParseTicker(ticker string) Ticker {
	raw := ticker
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Ticker{}
	}

	exchange := ""
	if idx := strings.Index(ticker, ":"); idx > 0 {
		exchange = ticker[:idx]
		ticker = ticker[idx+1:]
	} else {
		ticker = strings.TrimPrefix(ticker, "$")
	}

	if !IsIdentifier(ticker) {
		return Ticker{Raw: raw}
	}

	return Ticker{
		Exchange: exchange,
		Code:     ticker,
		Raw:      raw,
	}
}

// String returns the exchange-qualified ticker string when an exchange is known.
func (t Ticker) String() string {
	if t.Exchange == "" || t.Code == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// HasKnownExchange reports whether the exchange prefix is one recognised in text
func (t Ticker) HasKnownExchange() bool {
	return KnownExchanges[t.Exchange]
}

// ParseTickers parses a list of ticker strings, skipping invalid ones.
func ParseTickers(tickers []string) []Ticker {
	result := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if parsed := ParseTicker(t); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}
