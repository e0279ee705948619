package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tablequeue/internal/models"
)

const queueColumns = `id, shop_id, table_type_id, customer_id, table_no, queue_number, status,
    queue_qr, estimated_wait_time, notification_sent, user_requirements, created_at, updated_at`

func (s *queries) CreateQueue(ctx context.Context, q *models.Queue) error {
	query := `INSERT INTO queues (` + queueColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query,
		q.ID,
		q.ShopID,
		q.TableTypeID,
		q.CustomerID,
		q.TableNo,
		q.QueueNumber,
		q.Status,
		nullString(q.QueueQR),
		q.EstimatedWaitTime,
		q.NotificationSent,
		q.UserRequirements,
		q.CreatedAt.UTC(),
		q.UpdatedAt.UTC(),
	)
	return wrapErr("create queue", err)
}

func (s *queries) GetQueue(ctx context.Context, id string) (*models.Queue, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM queues WHERE id = ?`, id)
	q, err := scanQueue(row)
	if err != nil {
		return nil, wrapErr("get queue "+id, err)
	}
	return q, nil
}

func (s *queries) UpdateQueue(ctx context.Context, q *models.Queue) error {
	query := `UPDATE queues SET
        shop_id = ?, table_type_id = ?, customer_id = ?, table_no = ?, queue_number = ?,
        status = ?, queue_qr = ?, estimated_wait_time = ?, notification_sent = ?,
        user_requirements = ?, updated_at = ?
        WHERE id = ?`
	res, err := s.q.ExecContext(ctx, query,
		q.ShopID,
		q.TableTypeID,
		q.CustomerID,
		q.TableNo,
		q.QueueNumber,
		q.Status,
		nullString(q.QueueQR),
		q.EstimatedWaitTime,
		q.NotificationSent,
		q.UserRequirements,
		q.UpdatedAt.UTC(),
		q.ID,
	)
	if err != nil {
		return wrapErr("update queue", err)
	}
	return expectAffected(res, "update queue "+q.ID)
}

func (s *queries) DeleteQueue(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM queues WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete queue", err)
	}
	return expectAffected(res, "delete queue "+id)
}

func (s *queries) MarkQueueNotified(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE queues SET notification_sent = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return wrapErr("mark queue notified", err)
	}
	return expectAffected(res, "mark queue notified "+id)
}

// ListQueues returns matching entries in admission order. Queue numbers
// restart daily, so creation time leads and the number breaks ties.
func (s *queries) ListQueues(ctx context.Context, filter models.QueueFilter) ([]*models.Queue, error) {
	where, args := queueWhere(filter)
	query := `SELECT ` + queueColumns + ` FROM queues` + where + ` ORDER BY created_at ASC, queue_number ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list queues", err)
	}
	defer rows.Close()

	var out []*models.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, wrapErr("scan queue", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate queues", err)
	}
	return out, nil
}

func (s *queries) CountQueues(ctx context.Context, filter models.QueueFilter) (int, error) {
	where, args := queueWhere(filter)
	var count int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM queues`+where, args...).Scan(&count); err != nil {
		return 0, wrapErr("count queues", err)
	}
	return count, nil
}

// LockTableType is a no-op: transactions begin with BEGIN IMMEDIATE and
// already hold the database write lock.
func (s *queries) LockTableType(context.Context, string, string) error {
	return nil
}

// MaxQueueNumberSince looks at both active and archived entries so numbers
// are not reused after an entry leaves the active set.
func (s *queries) MaxQueueNumberSince(ctx context.Context, shopID, tableTypeID string, since time.Time) (int, error) {
	query := `SELECT COALESCE(MAX(queue_number), 0) FROM (
        SELECT queue_number FROM queues WHERE shop_id = ? AND table_type_id = ? AND created_at >= ?
        UNION ALL
        SELECT queue_number FROM queue_history WHERE shop_id = ? AND table_type_id = ? AND created_at >= ?
    )`
	var maxNumber int
	err := s.q.QueryRowContext(ctx, query,
		shopID, tableTypeID, since.UTC(),
		shopID, tableTypeID, since.UTC(),
	).Scan(&maxNumber)
	if err != nil {
		return 0, wrapErr("max queue number", err)
	}
	return maxNumber, nil
}

func queueWhere(filter models.QueueFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.ShopID != "" {
		conds = append(conds, "shop_id = ?")
		args = append(args, filter.ShopID)
	}
	if filter.TableTypeID != "" {
		conds = append(conds, "table_type_id = ?")
		args = append(args, filter.TableTypeID)
	}
	if filter.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
		conds = append(conds, fmt.Sprintf("status IN (%s)", placeholders))
		for _, st := range filter.Statuses {
			args = append(args, st)
		}
	}
	if filter.NotificationSent != nil {
		conds = append(conds, "notification_sent = ?")
		args = append(args, *filter.NotificationSent)
	}
	if !filter.CreatedSince.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.CreatedSince.UTC())
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueue(row rowScanner) (*models.Queue, error) {
	var q models.Queue
	var qr sql.NullString
	err := row.Scan(
		&q.ID,
		&q.ShopID,
		&q.TableTypeID,
		&q.CustomerID,
		&q.TableNo,
		&q.QueueNumber,
		&q.Status,
		&qr,
		&q.EstimatedWaitTime,
		&q.NotificationSent,
		&q.UserRequirements,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.QueueQR = qr.String
	return &q, nil
}
