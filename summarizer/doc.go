// Package summarizer implements the call-summarization pipeline: intake,
// transcribe, summarize, quality, finalize. Input validation is the only
// fatal failure; every collaborator error is absorbed by a deterministic
// local fallback so a well-formed request always yields a result.
package summarizer
