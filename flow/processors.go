package flow

import (
	"fmt"

	"github.com/hupe1980/meshbot/core"
	internalutil "github.com/hupe1980/meshbot/internal/util"
	"github.com/hupe1980/meshbot/model"
)

// InstructionsProcessor renders the instruction template into req.Instructions.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the system instructions of the request.
func (p *InstructionsProcessor) ProcessRequest(inv *Invocation, req *model.Request) error {
	instructions, err := internalutil.RenderTemplate(inv.Instruction, inv.Vars)
	if err != nil {
		return fmt.Errorf("failed to render instruction: %w", err)
	}

	inv.logger().Debug("flow.instruction.resolved", "responder", inv.Responder, "length", len(instructions))
	req.Instructions = instructions

	return nil
}

// HistoryProcessor converts session turns into request contents.
type HistoryProcessor struct{}

// NewHistoryProcessor creates a new history processor.
func NewHistoryProcessor() *HistoryProcessor { return &HistoryProcessor{} }

// Name returns the processor's identifier.
func (p *HistoryProcessor) Name() string { return "history" }

// ProcessRequest appends the (optionally trimmed) history to req.Contents.
func (p *HistoryProcessor) ProcessRequest(inv *Invocation, req *model.Request) error {
	turns := inv.History
	if n := inv.MaxHistoryTurns; n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	contents := make([]core.Content, 0, len(turns))
	for _, t := range turns {
		if t.Text == "" {
			continue
		}
		contents = append(contents, t.Content())
	}

	req.Contents = append(req.Contents, contents...)

	return nil
}

// ToolsProcessor declares the registered tools.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets req.Tools from the invocation's registry.
func (p *ToolsProcessor) ProcessRequest(inv *Invocation, req *model.Request) error {
	if inv.Tools == nil || inv.Tools.Len() == 0 {
		return nil
	}
	req.Tools = inv.Tools.Definitions()
	return nil
}
