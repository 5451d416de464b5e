/*
Package log provides structured logging for Flotilla using zerolog.

The package wraps zerolog behind a small API: Init configures the global
logger (level, JSON or console output, destination), and the With* helpers
derive child loggers tagged with the field a component cares about.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("agent")
	logger.Info().Str("hostname", hostname).Msg("convergence pass complete")

Every long-lived component takes its own child logger via WithComponent so
log lines are attributable without threading logger instances through every
call.
*/
package log
