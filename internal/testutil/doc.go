// Package testutil contains helper builders used across tests to reduce
// boilerplate: sessions with pre-populated history, scripted responders for
// the dispatch orchestrator and scripted models for the tool loop. Not
// intended for production usage.
package testutil
