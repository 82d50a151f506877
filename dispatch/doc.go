// Package dispatch implements the resilient dispatch orchestrator: it turns
// one inbound message into exactly one reply string, retrying transient and
// rate-limited responder failures with jittered exponential backoff and
// greedily swapping to unused fallback responders from the roster.
//
// The orchestrator is an explicit state machine. Every responder invocation
// yields a tagged Outcome (Success, Retryable or Fatal); failures are mapped
// to a Class by Classify, which prefers structured *model.Error kinds and only
// falls back to a versioned text-pattern table.
//
// Callers never receive errors. Fatal failures and exhausted retries are
// reported as natural-language replies while full diagnostics go to the log.
package dispatch
