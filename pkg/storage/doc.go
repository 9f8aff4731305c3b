/*
Package storage implements Sundial's activity-event datastore: a Store
contract (§4.3) with two backends, an in-memory reference implementation
(MemoryStore) and a persistent, single-writer, encrypted-SQLite-backed
implementation (EncryptedStore). Both hold the same four tables — buckets,
events, settings, applications — and the same duration-aware range
semantics; MemoryStore exists to be the test oracle and a hot path for unit
tests, EncryptedStore is what cmd/sundial and the watcher processes open.

# Architecture

	┌──────────────────── ENCRYPTED STORE ─────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            EncryptedStore                    │          │
	│  │  - File: <dataDir>/sundial-sqlite-<email>    │          │
	│  │          .v<SchemaVersion>.db (AES-GCM)      │          │
	│  │  - Engine: modernc.org/sqlite (pure Go)      │          │
	│  │  - One writer, many readers, process-wide    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Table Structure                 │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ bucket      (id unique)    │             │          │
	│  │  │ event       (bucket_fk,    │             │          │
	│  │  │              timestamp idx)│             │          │
	│  │  │ setting     (code unique)  │             │          │
	│  │  │ application (name/url      │             │          │
	│  │  │              unique-null)  │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Encryption at Rest                    │          │
	│  │  - Plaintext SQLite lives in a temp dir      │          │
	│  │    for the life of the open handle           │          │
	│  │  - Whole-file AES-GCM encrypt on flush/close │          │
	│  │  - Key: the CredentialGate-decrypted          │          │
	│  │    database passphrase, never persisted      │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

EncryptedStore:
  - Implements Store over a modernc.org/sqlite handle held in a temp file
  - Single database file per identity (keyed by account email)
  - markDirty/flush re-encrypts the whole temp file back to encPath
  - Thread-safety via a single sync.Mutex, not SQLite's own locking — the
    store is single-writer by contract (§5), not by file-level locking

MemoryStore:
  - bucket_id -> ordered []*model.Event plus a metadata map
  - insert_one assigns id = max(existing)+1 (or 0)
  - No encryption, no temp files: pure in-process state

# Open Protocol

Open (encrypted.go) implements §4.5 steps 3-6: create the schema if missing,
run additive migrations, load the bucket id -> internal key map, seed
default settings and the weekday schedule, re-emit the launch setting from
the actual autostart status, and — on schema or identity change — ask the
injected coordinator.ModuleCoordinator to stop then start every watcher
except the server. Steps 1-2 (fetch and decrypt the database passphrase)
belong to pkg/credential's Gate, which calls Open with the already-decrypted
passphrase; storage never imports pkg/credential.

# Insert Path

InsertOne implements the heartbeat-coalescing fast path: a non-AFK event
sharing (application_name, title) with the most recent event in the last
CoalesceWindow (70s) has its duration merged into that row instead of
inserting a new one. An event missing app or title is dropped silently —
this is how AFK/lock-screen noise is filtered at ingest.

InsertMany chunks its input into batches of up to 100 events (the §4.3
variable-count ceiling), runs each chunk through the same coalescing logic
inside one sql.Tx, and flushes the encrypted file once per chunk rather than
once per event — a 1,000-event insert costs ~10 full-file re-encryptions,
not 1,000.

# Range Scan

GetEvents and the dashboard/most-used-apps aggregates push a coarse
timestamp bound into SQL (widened by maxEventSpan to avoid dropping an
event that starts before the window but overlaps it) and apply the exact
half-open overlap/trim rule in Go via filterAndTrim, so MemoryStore and
EncryptedStore produce identical results instead of risking divergence in
SQLite datetime arithmetic.

# Failure Semantics

  - Integrity violations on an application upsert fall back to updating the
    looked-up row (sderr.ErrIntegrityViolation).
  - A setting row whose JSON value does not decode is logged and skipped by
    RetrieveAllSettings; RetrieveSetting returns the decode error for the
    code asked for. A bucket or event data column that does not decode is
    logged and read back as an empty map; the bucket or event itself is
    still returned, not skipped.
  - Migration failure or an encrypted-file open failure after credentials
    were presented is fatal to Open (sderr.ErrFatal).

# See Also

  - pkg/credential for the CredentialGate that supplies Open's passphrase
  - pkg/model for Bucket/Event/Application/Setting
  - pkg/query for the evaluator that reads through this Store
*/
package storage
