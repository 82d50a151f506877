// Package agent contains the model-backed Responder used by the dispatch
// orchestrator. A Responder resolves a roster descriptor to a model through
// a cached ModelFactory, renders its instruction, and runs the flow tool loop
// over the conversation history with the registered tools.
//
// Design principles:
//   - One Responder serves every descriptor of a roster; models are built
//     lazily and reused across dispatches
//   - Model failures surface unchanged (errors.As finds *model.Error) so the
//     orchestrator can classify them
//   - Tool failures are reported to the model, never to the orchestrator
package agent
