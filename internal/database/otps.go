package database

import (
	"context"

	"tablequeue/internal/models"
)

func (s *queries) CreateOtp(ctx context.Context, otp *models.Otp) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO otps (id, type, contact, code, expires_at, is_verified, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		otp.ID, otp.Type, otp.Contact, otp.Code, otp.ExpiresAt.UTC(), otp.IsVerified, otp.CreatedAt.UTC())
	return wrapErr("create otp", err)
}

func (s *queries) DeleteUnverifiedOtps(ctx context.Context, otpType, contact string) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM otps WHERE type = ? AND contact = ? AND is_verified = 0`, otpType, contact)
	return wrapErr("delete unverified otps", err)
}

func (s *queries) FindUnverifiedOtp(ctx context.Context, otpType, contact, code string) (*models.Otp, error) {
	var otp models.Otp
	err := s.q.QueryRowContext(ctx,
		`SELECT id, type, contact, code, expires_at, is_verified, created_at
        FROM otps WHERE type = ? AND contact = ? AND code = ? AND is_verified = 0
        ORDER BY created_at DESC LIMIT 1`,
		otpType, contact, code,
	).Scan(&otp.ID, &otp.Type, &otp.Contact, &otp.Code, &otp.ExpiresAt, &otp.IsVerified, &otp.CreatedAt)
	if err != nil {
		return nil, wrapErr("find otp", err)
	}
	return &otp, nil
}

func (s *queries) MarkOtpVerified(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE otps SET is_verified = 1 WHERE id = ?`, id)
	if err != nil {
		return wrapErr("mark otp verified", err)
	}
	return expectAffected(res, "mark otp verified "+id)
}

func (s *queries) HasVerifiedOtp(ctx context.Context, otpType, contact string) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM otps WHERE type = ? AND contact = ? AND is_verified = 1`, otpType, contact,
	).Scan(&count)
	if err != nil {
		return false, wrapErr("check verified otp", err)
	}
	return count > 0, nil
}
