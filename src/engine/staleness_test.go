package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqforge/reqforge/src/aisdk"
)

// seedDerivedDocuments commits one version of each analysis-derived type so
// staleness flags have documents to land on.
func seedDerivedDocuments(t *testing.T, eng *Engine, conversationID string) {
	t.Helper()
	for _, docType := range DerivedFromAnalysis {
		_, err := eng.versions.Commit(context.Background(), conversationID, docType, "derived content", ReasonGenerated, "")
		require.NoError(t, err)
	}
}

func TestAnalysisCommitFlagsImpactedDerivedDocs(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	oracle := &fakeOracle{verdict: aisdk.ImpactVerdict{Test: true, Traceability: true, Diagram: false}}
	eng := newTestEngine(store, provider, oracle)
	conv := startConversation(t, eng)
	seedDerivedDocuments(t, eng, conv.ID)

	_, err := eng.versions.Commit(context.Background(), conv.ID, DocAnalysis, "analysis v1", ReasonGenerated, "")
	require.NoError(t, err)

	provider.queue(&fakeStream{events: []aisdk.StreamEvent{
		&aisdk.DocumentChunk{DocType: "analysis", Fragment: "analysis v2 with a new requirement"},
	}})
	_, err = eng.SendMessage(context.Background(), conv.ID, "add a requirement", SendOptions{})
	require.NoError(t, err)

	// The oracle judged the diff between the old and new analysis.
	require.Equal(t, 1, oracle.callCount())
	assert.Equal(t, "analysis v1", oracle.lastOld)
	assert.Equal(t, "analysis v2 with a new requirement", oracle.lastNew)

	// Only the flagged types are stale.
	assert.True(t, store.documentFor(conv.ID, DocTest).IsStale)
	assert.True(t, store.documentFor(conv.ID, DocTraceability).IsStale)
	assert.False(t, store.documentFor(conv.ID, DocDiagram).IsStale)

	// The analysis itself is fresh.
	assert.False(t, store.documentFor(conv.ID, DocAnalysis).IsStale)
}

func TestNonAnalysisCommitSkipsOracle(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	oracle := &fakeOracle{verdict: aisdk.ImpactVerdict{Test: true}}
	eng := newTestEngine(store, provider, oracle)
	conv := startConversation(t, eng)

	provider.queue(&fakeStream{events: []aisdk.StreamEvent{
		&aisdk.DocumentChunk{DocType: "request", Fragment: "request content"},
	}})
	_, err := eng.SendMessage(context.Background(), conv.ID, "hi", SendOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, oracle.callCount())
}

func TestOracleFailureLeavesFlagsUntouched(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	oracle := &fakeOracle{err: errors.New("oracle unavailable")}
	eng := newTestEngine(store, provider, oracle)
	conv := startConversation(t, eng)
	seedDerivedDocuments(t, eng, conv.ID)

	provider.queue(&fakeStream{events: []aisdk.StreamEvent{
		&aisdk.DocumentChunk{DocType: "analysis", Fragment: "new analysis"},
	}})
	_, err := eng.SendMessage(context.Background(), conv.ID, "update", SendOptions{})
	require.NoError(t, err)

	// The commit landed despite the oracle failure.
	version, err := store.GetLatestVersion(context.Background(), conv.ID, string(DocAnalysis))
	require.NoError(t, err)
	require.NotNil(t, version)

	// No flag changed.
	for _, docType := range DerivedFromAnalysis {
		assert.False(t, store.documentFor(conv.ID, docType).IsStale, "%s must not be stale", docType)
	}
}

func TestFalseVerdictDoesNotClearExistingFlag(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	oracle := &fakeOracle{verdict: aisdk.ImpactVerdict{}}
	eng := newTestEngine(store, provider, oracle)
	conv := startConversation(t, eng)
	seedDerivedDocuments(t, eng, conv.ID)

	// The test document is already stale from an earlier change.
	require.NoError(t, store.SetDocumentStale(context.Background(), conv.ID, string(DocTest), true))

	provider.queue(&fakeStream{events: []aisdk.StreamEvent{
		&aisdk.DocumentChunk{DocType: "analysis", Fragment: "cosmetic rewording"},
	}})
	_, err := eng.SendMessage(context.Background(), conv.ID, "reword", SendOptions{})
	require.NoError(t, err)

	assert.True(t, store.documentFor(conv.ID, DocTest).IsStale)
}

func TestStalenessClearedByNewCommitOfThatType(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store, &fakeProvider{}, &fakeOracle{})
	conv := startConversation(t, eng)
	seedDerivedDocuments(t, eng, conv.ID)

	require.NoError(t, store.SetDocumentStale(context.Background(), conv.ID, string(DocTest), true))
	_, err := eng.versions.Commit(context.Background(), conv.ID, DocTest, "fresh tests", ReasonGenerated, "")
	require.NoError(t, err)

	assert.False(t, store.documentFor(conv.ID, DocTest).IsStale)
}

func TestDismissStaleness(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store, &fakeProvider{}, &fakeOracle{})
	conv := startConversation(t, eng)
	seedDerivedDocuments(t, eng, conv.ID)

	require.NoError(t, store.SetDocumentStale(context.Background(), conv.ID, string(DocDiagram), true))
	require.NoError(t, eng.DismissStaleness(context.Background(), conv.ID, DocDiagram))

	assert.False(t, store.documentFor(conv.ID, DocDiagram).IsStale)
}
