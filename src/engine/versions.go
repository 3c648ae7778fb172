package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reqforge/reqforge/src/storage"
)

// Version change reasons.
const (
	ReasonGenerated = "generated by assistant"
	ReasonSaved     = "saved from conversation"
	ReasonArchived  = "archived before template change"
)

// VersionStore owns the append-only version history and the document head
// pointer per (conversation, doc type). Every path that mutates document
// state (streaming finalize, template-change regeneration, restore) funnels
// through Commit, which is the serialization point.
type VersionStore struct {
	store  Store
	logger *slog.Logger
}

// NewVersionStore creates a version store
func NewVersionStore(store Store, logger *slog.Logger) *VersionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionStore{
		store:  store,
		logger: logger.With("component", "version_store"),
	}
}

// Commit writes the next version snapshot and updates the document head to
// match. The two writes are not atomic: if the head update fails after the
// version was written, the version is returned together with
// ErrHeadUpdateFailed and the head is repaired on the next read.
func (vs *VersionStore) Commit(ctx context.Context, conversationID string, docType DocType, content, reason, templateID string) (*storage.DocumentVersion, error) {
	max, err := vs.store.MaxVersionNumber(ctx, conversationID, string(docType))
	if err != nil {
		return nil, fmt.Errorf("failed to read version counter: %w", err)
	}

	version := &storage.DocumentVersion{
		ConversationID: conversationID,
		DocType:        string(docType),
		Number:         max + 1,
		Content:        content,
		Reason:         reason,
		TemplateID:     templateID,
	}
	if err := vs.store.InsertVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to write version: %w", err)
	}

	doc := &storage.Document{
		ConversationID: conversationID,
		DocType:        string(docType),
		Content:        content,
		CurrentVersion: version.Number,
		TemplateID:     templateID,
		IsStale:        false, // a new committed version clears staleness
	}
	if err := vs.store.UpsertDocument(ctx, doc); err != nil {
		vs.logger.Warn("document head update failed after version write",
			"conversation_id", conversationID,
			"doc_type", docType,
			"version", version.Number,
			"error", err)
		return version, fmt.Errorf("%w: %v", ErrHeadUpdateFailed, err)
	}

	vs.logger.Debug("committed document version",
		"conversation_id", conversationID,
		"doc_type", docType,
		"version", version.Number,
		"reason", reason)
	return version, nil
}

// Head returns the document head, verifying the current-version pointer
// against the latest stored version. A mismatch (from an interrupted commit)
// is repaired by re-pointing the head at the latest version, never by
// discarding the saved version.
func (vs *VersionStore) Head(ctx context.Context, conversationID string, docType DocType) (*storage.Document, error) {
	doc, err := vs.store.GetDocument(ctx, conversationID, string(docType))
	if err != nil {
		return nil, err
	}

	latest, err := vs.store.GetLatestVersion(ctx, conversationID, string(docType))
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return doc, nil
	}
	if doc != nil && doc.CurrentVersion == latest.Number {
		return doc, nil
	}

	// Finish the interrupted commit.
	repaired := &storage.Document{
		ConversationID: conversationID,
		DocType:        string(docType),
		Content:        latest.Content,
		CurrentVersion: latest.Number,
		TemplateID:     latest.TemplateID,
		IsStale:        false,
	}
	if err := vs.store.UpsertDocument(ctx, repaired); err != nil {
		return nil, fmt.Errorf("failed to repair document head: %w", err)
	}
	vs.logger.Warn("repaired document head pointer",
		"conversation_id", conversationID,
		"doc_type", docType,
		"version", latest.Number)
	return repaired, nil
}

// Restore commits a new version whose content copies version number. The
// counter is never rewound and the old version is untouched.
func (vs *VersionStore) Restore(ctx context.Context, conversationID string, docType DocType, number int) (*storage.DocumentVersion, error) {
	old, err := vs.store.GetVersion(ctx, conversationID, string(docType), number)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, fmt.Errorf("%w: %s v%d", ErrVersionNotFound, docType, number)
	}

	reason := fmt.Sprintf("restored to v%d", number)
	return vs.Commit(ctx, conversationID, docType, old.Content, reason, old.TemplateID)
}
