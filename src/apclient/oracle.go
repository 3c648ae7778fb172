package apclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/reqforge/reqforge/src/aisdk"
)

var _ aisdk.ImpactOracle = (*Oracle)(nil)

const impactPrompt = `You are reviewing a change to a system analysis document.
Given the diff below, decide which derived documents are semantically affected
and must be regenerated. Formatting-only changes affect nothing.

Answer with a single JSON object, no prose:
{"test": bool, "traceability": bool, "diagram": bool}

Diff of the analysis document:
`

// Oracle asks the generation backend which derived documents an analysis
// change invalidates. It sends a diff rather than both full documents to
// keep the judgment focused on what actually changed.
type Oracle struct {
	client *Client
	model  string
	logger *slog.Logger
	differ *diffmatchpatch.DiffMatchPatch
}

// NewOracle creates an impact oracle backed by a generation client.
func NewOracle(client *Client, model string, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		client: client,
		model:  model,
		logger: logger.With("component", "impact_oracle"),
		differ: diffmatchpatch.New(),
	}
}

// AssessImpact judges which derived document types the analysis change
// touches. An identical old and new content trivially affects nothing.
func (o *Oracle) AssessImpact(ctx context.Context, oldContent, newContent string) (aisdk.ImpactVerdict, error) {
	if oldContent == newContent {
		return aisdk.ImpactVerdict{}, nil
	}

	patches := o.differ.PatchMake(oldContent, newContent)
	diff := o.differ.PatchToText(patches)

	resp, err := o.client.Generate(ctx, &aisdk.GenerateRequest{
		Model: o.model,
		Messages: []*aisdk.Message{
			{Role: aisdk.RoleUser, Content: impactPrompt + diff},
		},
	})
	if err != nil {
		return aisdk.ImpactVerdict{}, fmt.Errorf("impact assessment failed: %w", err)
	}

	verdict, err := parseVerdict(resp.Text)
	if err != nil {
		return aisdk.ImpactVerdict{}, err
	}

	o.logger.Debug("impact assessed",
		"test", verdict.Test,
		"traceability", verdict.Traceability,
		"diagram", verdict.Diagram)
	return verdict, nil
}

// parseVerdict extracts the verdict JSON from a model reply, repairing it
// when the model wraps it in fences or emits slightly broken JSON.
func parseVerdict(text string) (aisdk.ImpactVerdict, error) {
	raw := text
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	var verdict aisdk.ImpactVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err == nil {
		return verdict, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return aisdk.ImpactVerdict{}, fmt.Errorf("unparseable impact verdict: %q", text)
	}
	if err := json.Unmarshal([]byte(repaired), &verdict); err != nil {
		return aisdk.ImpactVerdict{}, fmt.Errorf("unparseable impact verdict: %q", text)
	}
	return verdict, nil
}
