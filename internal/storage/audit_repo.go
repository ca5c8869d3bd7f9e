package storage

import (
	"context"
	"fmt"

	"github.com/better-wallet/multisig/pkg/types"
)

// AuditRepository handles audit log operations
type AuditRepository struct{}

// CreateTx creates a new audit log entry in the caller's transaction
func (r *AuditRepository) CreateTx(ctx context.Context, db DBTX, log *types.AuditLog) error {
	query := `
		INSERT INTO multisig_audit_logs (actor, action, resource_type, resource_id, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := db.QueryRow(ctx, query,
		log.Actor,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.Detail,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// Query retrieves audit logs with filtering, newest first
func (r *AuditRepository) Query(ctx context.Context, db DBTX, opts AuditQuery) ([]*types.AuditLog, error) {
	query := `
		SELECT id, actor, action, resource_type, resource_id, detail, created_at
		FROM multisig_audit_logs
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	argCount := 1

	if opts.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, opts.ResourceType)
		argCount++
	}

	if opts.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, opts.ResourceID)
		argCount++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*types.AuditLog
	for rows.Next() {
		var log types.AuditLog
		err := rows.Scan(
			&log.ID,
			&log.Actor,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&log.Detail,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}
