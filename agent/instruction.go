package agent

import (
	"context"

	"github.com/hupe1980/meshbot/core"
)

// DefaultInstruction is the system prompt of the blog assistant. {{.owner}}
// is replaced with the portfolio owner.
const DefaultInstruction = "You are the blog assistant of {{default \"the site owner\" .owner}}. " +
	"You are a helpful assistant. " +
	"When the user asks for specific information, " +
	"use the available tool(s) to query the appropriate API. " +
	"If the tool returns an error, inform the user politely. " +
	"If the tool is successful, present the information clearly and concisely."

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, key core.ConversationKey) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, key core.ConversationKey) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, key core.ConversationKey) (string, error) {
	return f(ctx, key)
}

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(context.Context, core.ConversationKey) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, key core.ConversationKey) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, key)
	}
	return i.text, nil
}
