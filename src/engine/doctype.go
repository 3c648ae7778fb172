// Package engine implements the derived-document synchronization engine:
// versioned document state, streaming reconciliation of generation output,
// staleness propagation across the fixed dependency graph, the conversation
// turn state machine, the function-call dispatcher, and the token ledger.
package engine

import "fmt"

// DocType is one of the fixed artifact kinds.
type DocType string

const (
	DocRequest        DocType = "request"
	DocAnalysis       DocType = "analysis"
	DocTest           DocType = "test"
	DocTraceability   DocType = "traceability"
	DocDiagram        DocType = "diagram"
	DocMaturityReport DocType = "maturity_report"
	DocBacklog        DocType = "backlog"
)

// AllDocTypes returns every document type in stable order.
func AllDocTypes() []DocType {
	return []DocType{
		DocRequest,
		DocAnalysis,
		DocTest,
		DocTraceability,
		DocDiagram,
		DocMaturityReport,
		DocBacklog,
	}
}

// DerivedFromAnalysis lists the document types derived from the analysis
// document. The dependency graph is fixed: analysis is the sole root feeding
// test, traceability, and diagram; traceability additionally depends on the
// test document's content, but its staleness is judged by the same oracle
// call against the analysis diff rather than second-order propagation.
var DerivedFromAnalysis = []DocType{DocTest, DocTraceability, DocDiagram}

// ParseDocType validates a document type string coming from outside the
// engine (provider chunks, HTTP paths).
func ParseDocType(s string) (DocType, error) {
	switch t := DocType(s); t {
	case DocRequest, DocAnalysis, DocTest, DocTraceability, DocDiagram, DocMaturityReport, DocBacklog:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocType, s)
}

func (t DocType) String() string {
	return string(t)
}
