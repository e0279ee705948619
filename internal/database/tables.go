package database

import (
	"context"

	"tablequeue/internal/models"
)

func (s *queries) CreateTableStatus(ctx context.Context, ts *models.TableStatus) error {
	query := `INSERT INTO table_status (id, shop_id, table_type_id, table_no, is_active, queue_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query,
		ts.ID, ts.ShopID, ts.TableTypeID, ts.TableNo, ts.IsActive, ts.QueueID, ts.CreatedAt.UTC())
	return wrapErr("create table status", err)
}

func (s *queries) CountActiveTables(ctx context.Context, shopID, tableTypeID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM table_status WHERE shop_id = ? AND table_type_id = ? AND is_active = 1`,
		shopID, tableTypeID,
	).Scan(&count)
	if err != nil {
		return 0, wrapErr("count active tables", err)
	}
	return count, nil
}

func (s *queries) ListTableStatus(ctx context.Context, shopID string) ([]*models.TableStatus, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, shop_id, table_type_id, table_no, is_active, queue_id, created_at
        FROM table_status WHERE shop_id = ? ORDER BY table_type_id, table_no`, shopID)
	if err != nil {
		return nil, wrapErr("list table status", err)
	}
	defer rows.Close()

	var out []*models.TableStatus
	for rows.Next() {
		ts, err := scanTableStatus(rows)
		if err != nil {
			return nil, wrapErr("scan table status", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate table status", err)
	}
	return out, nil
}

func (s *queries) TakeActiveTable(ctx context.Context, shopID, tableTypeID, tableNo string) (*models.TableStatus, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, shop_id, table_type_id, table_no, is_active, queue_id, created_at
        FROM table_status WHERE shop_id = ? AND table_type_id = ? AND table_no = ? AND is_active = 1`,
		shopID, tableTypeID, tableNo)
	ts, err := scanTableStatus(row)
	if err != nil {
		return nil, wrapErr("find active table "+tableNo, err)
	}

	res, err := s.q.ExecContext(ctx, `DELETE FROM table_status WHERE id = ?`, ts.ID)
	if err != nil {
		return nil, wrapErr("delete table status", err)
	}
	if err := expectAffected(res, "delete table status "+ts.ID); err != nil {
		return nil, err
	}
	return ts, nil
}

func scanTableStatus(row rowScanner) (*models.TableStatus, error) {
	var ts models.TableStatus
	if err := row.Scan(&ts.ID, &ts.ShopID, &ts.TableTypeID, &ts.TableNo, &ts.IsActive, &ts.QueueID, &ts.CreatedAt); err != nil {
		return nil, err
	}
	return &ts, nil
}
