/*
Package storage is strategos's durable persistence layer: a bbolt-backed
append-only output history store and checkpoint store, plus an
atomically-written registry snapshot file.

The history and checkpoint stores use one bucket per entity, keyed so
cursor iteration returns insertion order (history keys are
workerID + zero-padded seq; checkpoints are keyed by id alone, with
no index by workerID). The registry snapshot is a separate
temp-file-then-rename JSON document rather than a bbolt bucket — it is
the one piece of state that is wholesale replaced on every save rather
than appended to, and SPEC_FULL.md §9.2 treats it as a versioned
envelope an implementer can refuse to load if unrecognised.
*/
package storage
