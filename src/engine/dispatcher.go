package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/kaptinlin/jsonrepair"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/reqforge/reqforge/src/aisdk"
)

// Command names in the fixed function-call vocabulary.
const (
	CmdSaveRequestSummary      = "saveRequestSummary"
	CmdStartAnalysisGeneration = "startAnalysisGeneration"
	CmdStartTestGeneration     = "startTestGeneration"
	CmdStartVisualizationGen   = "startVisualizationGeneration"
	CmdStartTraceabilityGen    = "startTraceabilityGeneration"
)

type saveRequestSummaryArgs struct {
	Summary string `json:"summary" validate:"required"`
}

type startGenerationArgs struct {
	TemplateID   string `json:"template_id,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// DispatchResult is the outcome of one honored function call: the
// acknowledgment appended to the in-flight message, optionally a follow-up
// generation the engine runs after the turn completes, and optionally a
// transient notice for a partial persistence failure.
type DispatchResult struct {
	Ack      string
	FollowUp *GenerationRequest
	Notice   string
}

// Dispatcher maps mid-stream function calls to side effects. The command
// table is fixed; at most one call is honored per turn.
type Dispatcher struct {
	versions *VersionStore
	validate *validator.Validate
	logger   *slog.Logger
	specs    []*aisdk.CommandSpec
}

// NewDispatcher creates a dispatcher over the version store.
func NewDispatcher(versions *VersionStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		versions: versions,
		validate: validator.New(),
		logger:   logger.With("component", "dispatcher"),
		specs:    buildCommandSpecs(),
	}
}

// Specs returns the function-call vocabulary offered to the provider.
func (d *Dispatcher) Specs() []*aisdk.CommandSpec {
	return d.specs
}

// Dispatch handles one function call within a job's stream. A nil result
// with a nil error means the call was ignored (second call in the same
// turn). A CommandError is recoverable: the caller attaches it to the
// message and the stream continues.
func (d *Dispatcher) Dispatch(ctx context.Context, job *GenerationJob, call *aisdk.FunctionCallChunk) (*DispatchResult, error) {
	if job.CallHonored() {
		d.logger.Debug("ignoring extra function call in same turn",
			"conversation_id", job.ConversationID, "command", call.Name)
		return nil, nil
	}

	result, err := d.run(ctx, job, call)
	if err != nil {
		return nil, &CommandError{Command: call.Name, Err: err}
	}

	// The slot is consumed only by a call that actually took effect.
	job.HonorCall()
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, job *GenerationJob, call *aisdk.FunctionCallChunk) (*DispatchResult, error) {
	switch call.Name {
	case CmdSaveRequestSummary:
		var args saveRequestSummaryArgs
		if err := d.decodeArgs(call.Arguments, &args); err != nil {
			return nil, err
		}
		_, err := d.versions.Commit(ctx, job.ConversationID, DocRequest, args.Summary, ReasonSaved, "")
		if err != nil && !errors.Is(err, ErrHeadUpdateFailed) {
			return nil, err
		}
		result := &DispatchResult{Ack: "Request summary saved."}
		if err != nil {
			result.Notice = "Request summary saved, but its document head could not be updated; it will be repaired on next read."
		}
		return result, nil

	case CmdStartAnalysisGeneration:
		return d.queueGeneration(call, job, DocAnalysis, "Starting analysis generation.")

	case CmdStartTestGeneration:
		return d.queueGeneration(call, job, DocTest, "Starting test scenario generation.")

	case CmdStartVisualizationGen:
		return d.queueGeneration(call, job, DocDiagram, "Starting process diagram generation.")

	case CmdStartTraceabilityGen:
		return d.queueGeneration(call, job, DocTraceability, "Starting traceability matrix generation.")
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, call.Name)
}

func (d *Dispatcher) queueGeneration(call *aisdk.FunctionCallChunk, job *GenerationJob, docType DocType, ack string) (*DispatchResult, error) {
	var args startGenerationArgs
	if err := d.decodeArgs(call.Arguments, &args); err != nil {
		return nil, err
	}

	return &DispatchResult{
		Ack: ack,
		FollowUp: &GenerationRequest{
			DocType:      docType,
			TemplateID:   args.TemplateID,
			Instructions: args.Instructions,
		},
	}, nil
}

// decodeArgs unmarshals provider-supplied JSON arguments, repairing slightly
// malformed payloads before giving up, then validates the result.
func (d *Dispatcher) decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(raw))
		if repairErr != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), out); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}

	if err := d.validate.Struct(out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func buildCommandSpecs() []*aisdk.CommandSpec {
	reflector := jsonschema.Reflector{}

	mustSchema := func(v interface{}) *jsonschema.Schema {
		schema, err := reflector.Reflect(v)
		if err != nil {
			panic(fmt.Sprintf("failed to reflect command schema: %v", err))
		}
		return &schema
	}

	return []*aisdk.CommandSpec{
		{
			Name:        CmdSaveRequestSummary,
			Description: "Persist the agreed request summary as a new version of the request document.",
			Parameters:  mustSchema(saveRequestSummaryArgs{}),
		},
		{
			Name:        CmdStartAnalysisGeneration,
			Description: "Generate or regenerate the analysis document from the conversation so far.",
			Parameters:  mustSchema(startGenerationArgs{}),
		},
		{
			Name:        CmdStartTestGeneration,
			Description: "Generate or regenerate the test scenarios from the analysis document.",
			Parameters:  mustSchema(startGenerationArgs{}),
		},
		{
			Name:        CmdStartVisualizationGen,
			Description: "Generate or regenerate the process diagram from the analysis document.",
			Parameters:  mustSchema(startGenerationArgs{}),
		},
		{
			Name:        CmdStartTraceabilityGen,
			Description: "Generate or regenerate the traceability matrix from the analysis and test documents.",
			Parameters:  mustSchema(startGenerationArgs{}),
		},
	}
}
