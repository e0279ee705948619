package database

import (
	"context"

	"tablequeue/internal/models"
)

func (s *queries) CreateTableType(ctx context.Context, tt *models.TableType) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO table_types (id, shop_id, type, capacity, created_at) VALUES (?, ?, ?, ?, ?)`,
		tt.ID, tt.ShopID, tt.Type, tt.Capacity, tt.CreatedAt.UTC())
	return wrapErr("create table type", err)
}

func (s *queries) GetTableType(ctx context.Context, id string) (*models.TableType, error) {
	var tt models.TableType
	err := s.q.QueryRowContext(ctx,
		`SELECT id, shop_id, type, capacity, created_at FROM table_types WHERE id = ?`, id,
	).Scan(&tt.ID, &tt.ShopID, &tt.Type, &tt.Capacity, &tt.CreatedAt)
	if err != nil {
		return nil, wrapErr("get table type "+id, err)
	}
	return &tt, nil
}

// ListTableTypes lists a shop's table types, or all of them for an empty shopID.
func (s *queries) ListTableTypes(ctx context.Context, shopID string) ([]*models.TableType, error) {
	query := `SELECT id, shop_id, type, capacity, created_at FROM table_types`
	var args []any
	if shopID != "" {
		query += ` WHERE shop_id = ?`
		args = append(args, shopID)
	}
	query += ` ORDER BY created_at, type`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list table types", err)
	}
	defer rows.Close()

	var out []*models.TableType
	for rows.Next() {
		var tt models.TableType
		if err := rows.Scan(&tt.ID, &tt.ShopID, &tt.Type, &tt.Capacity, &tt.CreatedAt); err != nil {
			return nil, wrapErr("scan table type", err)
		}
		out = append(out, &tt)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate table types", err)
	}
	return out, nil
}

func (s *queries) CreateShopType(ctx context.Context, st *models.ShopType) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO shop_types (id, name, created_at) VALUES (?, ?, ?)`,
		st.ID, st.Name, st.CreatedAt.UTC())
	return wrapErr("create shop type", err)
}

func (s *queries) ListShopTypes(ctx context.Context) ([]*models.ShopType, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, created_at FROM shop_types ORDER BY name`)
	if err != nil {
		return nil, wrapErr("list shop types", err)
	}
	defer rows.Close()

	var out []*models.ShopType
	for rows.Next() {
		var st models.ShopType
		if err := rows.Scan(&st.ID, &st.Name, &st.CreatedAt); err != nil {
			return nil, wrapErr("scan shop type", err)
		}
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate shop types", err)
	}
	return out, nil
}
