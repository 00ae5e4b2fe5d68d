/*
Package log provides structured logging for strategos using zerolog.

A single global Logger is configured once via Init and then narrowed
into component-scoped child loggers with WithComponent, WithWorkerID,
and WithSessionName. Components take a zerolog.Logger in their
constructor rather than reading the global directly, so tests can
inject a buffer-backed logger.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	schedLog := log.WithComponent("registry")
	schedLog.Info().Str("worker_id", id).Msg("worker spawned")
*/
package log
