package finance

// Agent identifiers. AgentStockQuote is selected by ticker extraction, not
// by keywords.
const (
	AgentStockQuote = "stock_quote"
	AgentTax        = "tax"
	AgentPortfolio  = "portfolio"
	AgentNews       = "news"
	AgentGoals      = "goals"
	AgentMarket     = "market"
	AgentFinanceQA  = "finance_qa"
)

// AgentProfile describes a specialized finance agent and the keywords that
// route to it.
type AgentProfile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// SpecializedAgents returns the keyword-routed agents in priority order.
// Order is load-bearing: specialized agents are checked before the generic
// fallback, whose keyword set ("what is", "explain", ...) is broad enough
// to shadow them otherwise.
func SpecializedAgents() []AgentProfile {
	return []AgentProfile{
		{
			ID:          AgentTax,
			Name:        "Tax Education Agent",
			Description: "Explains tax-advantaged accounts and filing basics (not tax advice).",
			Keywords:    []string{"tax", "ira", "401k", "hsa", "deduction", "withholding"},
		},
		{
			ID:          AgentPortfolio,
			Name:        "Portfolio Analysis Agent",
			Description: "Reviews user-provided holdings and risk preferences.",
			Keywords:    []string{"portfolio", "allocation", "diversification", "holdings", "rebalance"},
		},
		{
			ID:          AgentNews,
			Name:        "News Synthesizer Agent",
			Description: "Condenses financial news with context relevant to beginners.",
			Keywords:    []string{"news", "headline", "article", "update", "report"},
		},
		{
			ID:          AgentGoals,
			Name:        "Goal Planning Agent",
			Description: "Guides users through setting time-bound financial goals.",
			Keywords:    []string{"goal", "plan", "timeline", "budget", "retirement", "college"},
		},
		{
			ID:          AgentMarket,
			Name:        "Market Analysis Agent",
			Description: "Shares market context and trend highlights using cached data feeds.",
			Keywords:    []string{"market", "index", "sector", "volatility", "trend", "macro"},
		},
	}
}

// FallbackAgent is the generic finance Q&A variant selected when nothing
// specialized matches. Routing always resolves; ambiguity is never an error.
func FallbackAgent() AgentProfile {
	return AgentProfile{
		ID:          AgentFinanceQA,
		Name:        "Finance Q&A Agent",
		Description: "Provides general-purpose financial education and definitions.",
		Keywords:    []string{"what is", "define", "explain", "how do", "difference"},
	}
}

// StockQuoteAgent is the variant selected when a ticker is extracted.
func StockQuoteAgent() AgentProfile {
	return AgentProfile{
		ID:          AgentStockQuote,
		Name:        "Stock Quote Agent",
		Description: "Fetches live quote data for a detected ticker symbol.",
	}
}
