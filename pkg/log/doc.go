/*
Package log provides structured logging for Sundial using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, a configurable level and output writer, and
helper functions for the package-level logger most call sites use. All logs
include timestamps and support filtering by severity, which is what
cmd/sundial's logs command parses back out of a module's log file.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("store")                   │          │
	│  │  - WithBucketID("aw-watcher-window")        │          │
	│  │  - WithEventID(42)                          │          │
	│  │  - WithQueryName("most_used_apps")          │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Sundial packages

Context Loggers:
  - WithComponent: tags logs with a subsystem name (store, credential, query)
  - WithBucketID: tags logs with the bucket a write/read concerns
  - WithEventID: tags logs with the row id assigned by insert/coalesce
  - WithQueryName: tags logs with the registered query function being evaluated

# Usage

Initializing the logger (cmd/sundial's initLogging does this against
sundial.log, or sundial-testing.log under --testing, in pkg/dirs' log
directory):

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     logFile,
	})

Simple logging:

	log.Info("store opened")
	log.Warn("heartbeat outside coalescing window")
	log.Errorf("upsert application from event", err)

Structured, component-scoped logging (pkg/storage uses this shape for
insert/coalesce/migration events):

	storeLog := log.WithComponent("store")
	storeLog.Info().Str("bucket_id", bucketID).Msg("bucket created")

	queryLog := log.WithQueryName(name)
	queryLog.Error().Err(err).Msg("query function type mismatch")

# Log Output Example

	{"level":"info","component":"store","bucket_id":"aw-watcher-window","time":"2026-01-05T10:30:00Z","message":"bucket created"}
	{"level":"warn","component":"store","time":"2026-01-05T10:30:05Z","message":"heartbeat outside coalescing window"}

# Design Notes

  - cmd/sundial's logs command reads these JSON lines back, parsing each as
    {level, time} and filtering by --since/--level severity ordinal rather
    than string-matching the raw line (see cmd/sundial/logs.go).
  - Never log the decrypted database passphrase, the identity provider's
    user_key, or raw event data; log bucket/event identifiers instead.

# See Also

  - zerolog documentation: https://github.com/rs/zerolog
*/
package log
