package finance

import (
	"fmt"
	"regexp"
	"strings"
)

// Three ordered ticker patterns; the first match wins.
var (
	tickerFromDollar      = regexp.MustCompile(`\$([A-Za-z]{1,6})\b`)
	tickerFromPricePhrase = regexp.MustCompile(`(?i)\b(?:stock\s+price|price|quote)\s+(?:of\s+)?([A-Za-z]{1,6})\b`)
	tickerFromSuffix      = regexp.MustCompile(`(?i)\b([A-Za-z]{1,6})\s+(?:stock\s+price|stock|quote)\b`)
)

// ExtractTicker pulls a ticker symbol out of a free-text query, uppercased.
// Pattern order matters: a dollar-prefixed token beats phrase matches.
func ExtractTicker(query string) (string, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", false
	}
	for _, re := range []*regexp.Regexp{tickerFromDollar, tickerFromPricePhrase, tickerFromSuffix} {
		if m := re.FindStringSubmatch(q); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// Decision is the routing outcome carried through the pipeline state.
type Decision struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Reason    string `json:"reason"`
	Symbol    string `json:"symbol,omitempty"`
}

// Router deterministically maps a query to exactly one agent variant using
// an ordered priority list: ticker extraction first, then specialized
// keyword sets top to bottom, then the generic fallback.
type Router struct {
	specialized []AgentProfile
	fallback    AgentProfile
}

// NewRouter creates a router over the default agent registry.
func NewRouter() *Router {
	return &Router{
		specialized: SpecializedAgents(),
		fallback:    FallbackAgent(),
	}
}

// Route resolves the query to a Decision. It is pure and total: every
// query resolves to some variant.
func (r *Router) Route(query string) Decision {
	if symbol, ok := ExtractTicker(query); ok {
		agent := StockQuoteAgent()
		return Decision{
			AgentID:   agent.ID,
			AgentName: agent.Name,
			Reason:    fmt.Sprintf("Detected a stock quote request for symbol %q.", symbol),
			Symbol:    symbol,
		}
	}

	lower := strings.ToLower(query)
	for _, agent := range r.specialized {
		for _, keyword := range agent.Keywords {
			if strings.Contains(lower, keyword) {
				return Decision{
					AgentID:   agent.ID,
					AgentName: agent.Name,
					Reason:    fmt.Sprintf("Matched keyword %q; specialized agents are checked before the generic fallback.", keyword),
				}
			}
		}
	}

	return Decision{
		AgentID:   r.fallback.ID,
		AgentName: r.fallback.Name,
		Reason:    "No specialized keyword matched; using the generic finance Q&A fallback.",
	}
}
