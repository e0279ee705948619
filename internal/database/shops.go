package database

import (
	"context"

	"tablequeue/internal/models"
)

const shopColumns = `id, name, full_address, lat, lng, phone_number, email, password_hash,
    shop_img, shop_title, description, shop_type_id, created_at, updated_at`

// CreateShopWithTableTypes inserts the shop and its initial table types atomically.
func (db *DB) CreateShopWithTableTypes(ctx context.Context, shop *models.Shop, tableTypes []*models.TableType) error {
	return db.withTx(ctx, func(s *queries) error {
		if err := s.createShop(ctx, shop); err != nil {
			return err
		}
		for _, tt := range tableTypes {
			if err := s.CreateTableType(ctx, tt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *queries) createShop(ctx context.Context, shop *models.Shop) error {
	query := `INSERT INTO shops (` + shopColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query,
		shop.ID,
		shop.Name,
		shop.FullAddress,
		shop.Lat,
		shop.Lng,
		shop.PhoneNumber,
		shop.Email,
		shop.PasswordHash,
		shop.ShopImg,
		shop.ShopTitle,
		shop.Description,
		shop.ShopTypeID,
		shop.CreatedAt.UTC(),
		shop.UpdatedAt.UTC(),
	)
	return wrapErr("create shop", err)
}

func (s *queries) GetShop(ctx context.Context, id string) (*models.Shop, error) {
	return s.getShopBy(ctx, "id", id)
}

func (s *queries) GetShopByEmail(ctx context.Context, email string) (*models.Shop, error) {
	return s.getShopBy(ctx, "email", email)
}

func (s *queries) GetShopByPhone(ctx context.Context, phone string) (*models.Shop, error) {
	return s.getShopBy(ctx, "phone_number", phone)
}

// getShopBy is only called with fixed column names.
func (s *queries) getShopBy(ctx context.Context, column, value string) (*models.Shop, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE `+column+` = ?`, value)
	shop, err := scanShop(row)
	if err != nil {
		return nil, wrapErr("get shop by "+column, err)
	}
	return shop, nil
}

func (s *queries) ListShops(ctx context.Context) ([]*models.Shop, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+shopColumns+` FROM shops ORDER BY created_at`)
	if err != nil {
		return nil, wrapErr("list shops", err)
	}
	defer rows.Close()

	var out []*models.Shop
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, wrapErr("scan shop", err)
		}
		out = append(out, shop)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate shops", err)
	}
	return out, nil
}

func (s *queries) UpdateShop(ctx context.Context, shop *models.Shop) error {
	query := `UPDATE shops SET
        name = ?, full_address = ?, lat = ?, lng = ?, phone_number = ?, email = ?, password_hash = ?,
        shop_img = ?, shop_title = ?, description = ?, shop_type_id = ?, updated_at = ?
        WHERE id = ?`
	res, err := s.q.ExecContext(ctx, query,
		shop.Name,
		shop.FullAddress,
		shop.Lat,
		shop.Lng,
		shop.PhoneNumber,
		shop.Email,
		shop.PasswordHash,
		shop.ShopImg,
		shop.ShopTitle,
		shop.Description,
		shop.ShopTypeID,
		shop.UpdatedAt.UTC(),
		shop.ID,
	)
	if err != nil {
		return wrapErr("update shop", err)
	}
	return expectAffected(res, "update shop "+shop.ID)
}

func scanShop(row rowScanner) (*models.Shop, error) {
	var shop models.Shop
	err := row.Scan(
		&shop.ID,
		&shop.Name,
		&shop.FullAddress,
		&shop.Lat,
		&shop.Lng,
		&shop.PhoneNumber,
		&shop.Email,
		&shop.PasswordHash,
		&shop.ShopImg,
		&shop.ShopTitle,
		&shop.Description,
		&shop.ShopTypeID,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &shop, nil
}
