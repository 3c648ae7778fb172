package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

const versionColumns = `id, conversation_id, doc_type, number, content, reason, template_id, created_at`

// InsertVersion writes a new immutable version snapshot. Versions are never
// updated or deleted outside of conversation cascade deletion.
func InsertVersion(ctx context.Context, db Execer, version *DocumentVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}

	query := `INSERT INTO document_versions (` + versionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		version.ID,
		version.ConversationID,
		version.DocType,
		version.Number,
		version.Content,
		version.Reason,
		version.TemplateID,
		version.CreatedAt,
	)
	return err
}

// MaxVersionNumber returns the highest version number committed for a
// (conversation, doc type), or 0 when no versions exist.
func MaxVersionNumber(ctx context.Context, db sqlscan.Querier, conversationID, docType string) (int, error) {
	query := `SELECT COALESCE(MAX(number), 0) AS n FROM document_versions WHERE conversation_id = ? AND doc_type = ?`
	var n int
	if err := sqlscan.Get(ctx, db, &n, query, conversationID, docType); err != nil {
		return 0, err
	}
	return n, nil
}

// GetVersion retrieves one version by its number
func GetVersion(ctx context.Context, db sqlscan.Querier, conversationID, docType string, number int) (*DocumentVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE conversation_id = ? AND doc_type = ? AND number = ?`
	var v DocumentVersion
	err := sqlscan.Get(ctx, db, &v, query, conversationID, docType, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &v, nil
}

// GetLatestVersion retrieves the newest version for a (conversation, doc type)
func GetLatestVersion(ctx context.Context, db sqlscan.Querier, conversationID, docType string) (*DocumentVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE conversation_id = ? AND doc_type = ? ORDER BY number DESC LIMIT 1`
	var v DocumentVersion
	err := sqlscan.Get(ctx, db, &v, query, conversationID, docType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No versions yet
		}
		return nil, err
	}
	return &v, nil
}

// GetVersionsByDocument retrieves the full version history, oldest first
func GetVersionsByDocument(ctx context.Context, db sqlscan.Querier, conversationID, docType string) ([]DocumentVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE conversation_id = ? AND doc_type = ? ORDER BY number`
	var versions []DocumentVersion
	if err := sqlscan.Select(ctx, db, &versions, query, conversationID, docType); err != nil {
		return nil, err
	}
	return versions, nil
}

// DeleteVersionsByConversationID deletes all versions belonging to a conversation
func DeleteVersionsByConversationID(ctx context.Context, db Execer, conversationID string) error {
	query := `DELETE FROM document_versions WHERE conversation_id = ?`
	_, err := db.ExecContext(ctx, query, conversationID)
	return err
}
