package database

import (
	"context"

	"tablequeue/internal/models"
)

const customerColumns = `id, name, email, phone_number, password_hash, profile_img, is_verified, created_at, updated_at`

func (s *queries) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `INSERT INTO customers (` + customerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query,
		c.ID, c.Name, c.Email, c.PhoneNumber, c.PasswordHash, c.ProfileImg, c.IsVerified,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return wrapErr("create customer", err)
}

func (s *queries) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, wrapErr("get customer "+id, err)
	}
	return c, nil
}

func (s *queries) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone_number = ?`, phone)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, wrapErr("get customer by phone", err)
	}
	return c, nil
}

func (s *queries) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = ? AND email != ''`, email)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, wrapErr("get customer by email", err)
	}
	return c, nil
}

func (s *queries) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	query := `UPDATE customers SET
        name = ?, email = ?, phone_number = ?, password_hash = ?, profile_img = ?, is_verified = ?, updated_at = ?
        WHERE id = ?`
	res, err := s.q.ExecContext(ctx, query,
		c.Name, c.Email, c.PhoneNumber, c.PasswordHash, c.ProfileImg, c.IsVerified, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return wrapErr("update customer", err)
	}
	return expectAffected(res, "update customer "+c.ID)
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.PhoneNumber, &c.PasswordHash, &c.ProfileImg,
		&c.IsVerified, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
