// Package model defines the provider-agnostic abstractions for invoking
// language models inside meshbot.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Report failures with an explicit FailureKind at the invocation boundary
//     so the dispatch orchestrator does not have to guess from error text
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement Model so higher layers
// remain decoupled from vendor SDKs.
package model
