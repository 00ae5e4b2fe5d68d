// Package types defines the core data structures used throughout
// strategos: Worker, its status/health enums, checkpoints, and the
// semi-structured Context value bag used for task/correction context.
//
// PublicWorker is a distinct type from Worker, not a marshal hook on
// it, so that every external boundary (API responses, the streaming
// surface, a read-back from the registry snapshot for clients) strips
// RalphToken at compile time rather than by convention.
package types
