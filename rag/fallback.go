package rag

// FallbackDocuments returns the curated finance education documents served
// when vector retrieval is unavailable. The list is never empty so that
// answer formatting downstream always has content to cite.
func FallbackDocuments() []Document {
	return []Document{
		{
			ID:      "diversification",
			Title:   "Why diversification matters",
			URL:     "https://example.com/diversification",
			Content: "Spreading investments across asset classes reduces the impact any single holding can have on a portfolio. Concentration in one stock or sector amplifies both gains and losses.",
		},
		{
			ID:      "indices",
			Title:   "Market indices explained",
			URL:     "https://example.com/indices",
			Content: "A market index tracks a basket of securities to represent a market segment. Broad indices like the S&P 500 are common benchmarks for fund performance and market sentiment.",
		},
		{
			ID:      "tax-accounts",
			Title:   "Tax-advantaged accounts overview",
			URL:     "https://example.com/tax-accounts",
			Content: "Accounts such as a 401(k), IRA, or HSA defer or exempt taxes on contributions and growth. Contribution limits and withdrawal rules differ per account type and change yearly.",
		},
		{
			ID:      "compounding",
			Title:   "The power of compound growth",
			URL:     "https://example.com/compounding",
			Content: "Reinvested returns earn returns of their own. Starting early matters more than contribution size because growth compounds over the full holding period.",
		},
		{
			ID:      "risk-tolerance",
			Title:   "Understanding risk tolerance",
			URL:     "https://example.com/risk-tolerance",
			Content: "Risk tolerance combines the financial capacity to absorb losses with the temperament to hold through drawdowns. Time horizon is the largest single input.",
		},
	}
}
