// Package finance implements the finance Q&A pipeline: intake, route,
// execute, finalize. A routing decision picks exactly one specialized agent
// variant per run (stock quote, tax, portfolio, news, goals, market, or the
// generic fallback); the stage sequence itself never branches.
package finance
