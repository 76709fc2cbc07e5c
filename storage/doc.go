// Package storage holds the durable credential record shared by every
// gateway instance of the same namespace, and the change-notification
// channel that keeps those instances eventually consistent.
//
// A Backend stores exactly one Record (key "tokens") and delivers an Event
// whenever a *different* instance mutates it, mirroring how storage events
// fire only in tabs other than the writer. Semantics are single-key
// last-write-wins; no ordering or atomicity stronger than that is offered
// or assumed.
//
// Backends: Redis (pub/sub notifications), SQLite via bun (revision
// polling), Memory (tests and single-instance deployments).
//
// Only the session Store writes through a Backend. Everything else reads
// session state through the Store so the credential/identity pair is never
// observed torn.
package storage
