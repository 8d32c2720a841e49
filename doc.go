// Package notefold is a folder and note workspace application with a
// hosted database sync layer.
//
// Users organize notes into colored folders and edit them as rich-text
// block documents (paragraphs, headings, lists, embedded images, and
// tables). All state lives behind a persistence interface with three
// backends: an in-memory store for local mode and tests, PostgreSQL via
// GORM, and SurrealDB over its WebSocket RPC with live queries feeding
// the change stream.
//
// # Architecture Overview
//
//   - pkg/models: record types with typed identifiers that serialize to
//     JSON, CBOR record IDs, and SQL uuid columns
//   - pkg/document: the block document model and the editing engine
//   - pkg/store: the persistence contract plus the memory, postgres,
//     and surrealdb implementations
//   - pkg/workspace: per-user in-memory state and transactional
//     mutations with deterministic rollback
//   - pkg/auth: sessions and the sign-up/sign-in contract
//   - pkg/notefold: HTTP API, WebSocket change hub, CLI, and wiring
//   - pkg/client: typed HTTP client for the API
//   - pkg/notefoldtesting: virtual users for smoke testing
//
// # Running
//
//	notefold run                        # in-memory store
//	notefold -store postgres migrate    # prepare the PostgreSQL schema
//	notefold -store postgres run
//	notefold -store surrealdb run
//
// Server write access can be suspended with -read-only, and sign-ups can
// be gated behind confirmation with -require-confirmation.
package notefold
