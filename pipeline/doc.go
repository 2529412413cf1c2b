// Package pipeline provides the conversation pipeline engine: a fixed,
// linear sequence of named stages executed exactly once per run, each
// contributing a partial-state patch that is merged into the accumulated
// state before the next stage starts.
//
// The engine is generic over the application's state and patch types so
// that each pipeline can keep an explicit, typed state struct while the
// sequencing and merge discipline stay in one place.
package pipeline
