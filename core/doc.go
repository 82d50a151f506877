// Package core provides the foundational domain types and contracts shared by
// meshbot's packages:
//
//   - ConversationKey (the identity of one independent memory stream)
//   - Turn / Session (append-only, role-tagged conversation history)
//   - SessionStore (get-or-create contract for session backends)
//   - Content / Part (role-based model input and output segments)
//   - CallLimiter and ToolContext (per-invocation bounds and tool sandboxing)
//
// Concrete stores, model adapters and the dispatch orchestrator live in their
// own packages and depend on core, never the other way around.
package core
