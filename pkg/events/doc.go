/*
Package events is strategos's registry-wide pub/sub: worker lifecycle
and output events fanned out to every subscriber in production order,
with per-subscriber backpressure rather than a shared buffer. A
subscriber that falls behind its buffer is evicted with
ErrSlowConsumer and closed rather than silently dropping individual
events — the broker never blocks a producer, and a filter predicate
can be supplied at Subscribe time to scope a stream (e.g. one worker's
events only).
*/
package events
