// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session type) live in the core package so the
// dispatch orchestrator does not depend on a concrete storage backend.
//
// InMemoryStore keeps sessions for the lifetime of the process only. A
// persistent backend would be added as a sub-package implementing the same
// interface; only the wiring layer decides which one to instantiate.
package session
