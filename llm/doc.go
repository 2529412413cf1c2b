// Package llm provides the text-generation collaborator used by pipeline
// stages. Stages treat every error from this package as soft: they log it,
// fall back to a deterministic local result, and let the run complete.
package llm
