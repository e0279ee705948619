package database

import (
	"context"
	"database/sql"

	"tablequeue/internal/models"
)

func (s *queries) CreateQueueHistory(ctx context.Context, h *models.QueueHistory) error {
	query := `INSERT INTO queue_history (
            id, queue_id, shop_id, table_type_id, customer_id, table_no, queue_number, status,
            queue_qr, estimated_wait_time, user_requirements, created_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query,
		h.ID,
		h.QueueID,
		h.ShopID,
		h.TableTypeID,
		h.CustomerID,
		h.TableNo,
		h.QueueNumber,
		h.Status,
		nullString(h.QueueQR),
		h.EstimatedWaitTime,
		h.UserRequirements,
		h.CreatedAt.UTC(),
		h.CompletedAt.UTC(),
	)
	return wrapErr("create queue history", err)
}

// ListQueueHistory returns the shop's archive, most recent completion first.
func (s *queries) ListQueueHistory(ctx context.Context, shopID string) ([]*models.QueueHistory, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT
            id, queue_id, shop_id, table_type_id, customer_id, table_no, queue_number, status,
            queue_qr, estimated_wait_time, user_requirements, created_at, completed_at
        FROM queue_history WHERE shop_id = ? ORDER BY completed_at DESC`, shopID)
	if err != nil {
		return nil, wrapErr("list queue history", err)
	}
	defer rows.Close()

	var out []*models.QueueHistory
	for rows.Next() {
		var h models.QueueHistory
		var qr sql.NullString
		if err := rows.Scan(
			&h.ID,
			&h.QueueID,
			&h.ShopID,
			&h.TableTypeID,
			&h.CustomerID,
			&h.TableNo,
			&h.QueueNumber,
			&h.Status,
			&qr,
			&h.EstimatedWaitTime,
			&h.UserRequirements,
			&h.CreatedAt,
			&h.CompletedAt,
		); err != nil {
			return nil, wrapErr("scan queue history", err)
		}
		h.QueueQR = qr.String
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate queue history", err)
	}
	return out, nil
}
