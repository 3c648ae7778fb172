package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

const documentColumns = `conversation_id, doc_type, content, current_version, template_id, is_stale, updated_at`

// GetDocument retrieves the document head for a (conversation, doc type)
func GetDocument(ctx context.Context, db sqlscan.Querier, conversationID, docType string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE conversation_id = ? AND doc_type = ?`
	var doc Document
	err := sqlscan.Get(ctx, db, &doc, query, conversationID, docType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocumentsByConversationID retrieves all document heads for a conversation
func GetDocumentsByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE conversation_id = ? ORDER BY doc_type`
	var docs []Document
	if err := sqlscan.Select(ctx, db, &docs, query, conversationID); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpsertDocument writes the document head, creating it on first commit
func UpsertDocument(ctx context.Context, db Execer, doc *Document) error {
	doc.UpdatedAt = time.Now()

	query := `INSERT INTO documents (` + documentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (conversation_id, doc_type) DO UPDATE SET
			content = excluded.content,
			current_version = excluded.current_version,
			template_id = excluded.template_id,
			is_stale = excluded.is_stale,
			updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		doc.ConversationID,
		doc.DocType,
		doc.Content,
		doc.CurrentVersion,
		doc.TemplateID,
		doc.IsStale,
		doc.UpdatedAt,
	)
	return err
}

// SetDocumentStale flips the staleness flag on an existing document head.
// A missing head is a no-op: staleness only applies to documents that exist.
func SetDocumentStale(ctx context.Context, db Execer, conversationID, docType string, stale bool) error {
	query := `UPDATE documents SET is_stale = ?, updated_at = ? WHERE conversation_id = ? AND doc_type = ?`
	_, err := db.ExecContext(ctx, query, stale, time.Now(), conversationID, docType)
	return err
}

// DeleteDocumentsByConversationID deletes all document heads for a conversation
func DeleteDocumentsByConversationID(ctx context.Context, db Execer, conversationID string) error {
	query := `DELETE FROM documents WHERE conversation_id = ?`
	_, err := db.ExecContext(ctx, query, conversationID)
	return err
}
