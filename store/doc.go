// Package store provides the conversation persistence layer: checkpoint
// snapshots of the latest pipeline state per conversation, and the
// append-only run history.
//
// The two stores deliberately follow different merge semantics. A
// checkpoint slot is overwritten on every run for its conversation (the
// latest state wins), while run history only ever grows. Both are consulted
// exclusively through the pipeline orchestrators' read operations.
package store
