package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tablequeue/internal/domain"
	"tablequeue/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func hashPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", fmt.Errorf("password must be at least 6 characters: %w", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// verifier is the part of OtpService account flows depend on.
type verifier interface {
	IsVerified(ctx context.Context, otpType, contact string) (bool, error)
	Verify(ctx context.Context, otpType, contact, code string) error
}

// confirmCode consumes a fresh code for contact. Sensitive changes use it
// instead of requireVerified so an old verification cannot be replayed.
func confirmCode(ctx context.Context, v verifier, otpType, contact, code string) error {
	err := v.Verify(ctx, otpType, contact, code)
	if errors.Is(err, domain.ErrInvalidInput) {
		return fmt.Errorf("%s %s: invalid otp: %w", otpType, contact, domain.ErrUnauthorized)
	}
	return err
}

func requireVerified(ctx context.Context, v verifier, otpType, contact string) error {
	ok, err := v.IsVerified(ctx, otpType, contact)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s is not verified: %w", otpType, contact, domain.ErrInvalidState)
	}
	return nil
}

type ShopService struct {
	store  domain.AccountStore
	otp    verifier
	clock  domain.Clock
	logger *zerolog.Logger
}

func NewShopService(store domain.AccountStore, otp verifier, clock domain.Clock, logger *zerolog.Logger) *ShopService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ShopService{store: store, otp: otp, clock: clock, logger: logger}
}

type InitialTableType struct {
	Type     string `json:"type"`
	Capacity int    `json:"capacity"`
}

type RegisterShopRequest struct {
	Name        string             `json:"name"`
	FullAddress string             `json:"full_address"`
	Lat         float64            `json:"lat"`
	Lng         float64            `json:"lng"`
	PhoneNumber string             `json:"phone_number"`
	Email       string             `json:"email"`
	Password    string             `json:"password"`
	ShopImg     string             `json:"shop_img"`
	ShopTitle   string             `json:"shop_title"`
	Description string             `json:"description"`
	ShopTypeID  string             `json:"shop_type_id"`
	TableTypes  []InitialTableType `json:"table_types"`
}

func (s *ShopService) Register(ctx context.Context, req RegisterShopRequest) (*models.Shop, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if strings.TrimSpace(req.Name) == "" || req.Email == "" || req.PhoneNumber == "" {
		return nil, fmt.Errorf("register shop: name, email and phone_number are required: %w", domain.ErrInvalidInput)
	}

	if err := requireVerified(ctx, s.otp, models.OtpTypeEmail, req.Email); err != nil {
		return nil, fmt.Errorf("register shop: %w", err)
	}
	if err := requireVerified(ctx, s.otp, models.OtpTypePhone, req.PhoneNumber); err != nil {
		return nil, fmt.Errorf("register shop: %w", err)
	}
	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, fmt.Errorf("register shop: %w", err)
	}
	if err := s.ensurePhoneFree(ctx, req.PhoneNumber); err != nil {
		return nil, fmt.Errorf("register shop: %w", err)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register shop: %w", err)
	}

	now := s.clock.Now()
	shop := &models.Shop{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		FullAddress:  req.FullAddress,
		Lat:          req.Lat,
		Lng:          req.Lng,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		PasswordHash: hash,
		ShopImg:      req.ShopImg,
		ShopTitle:    req.ShopTitle,
		Description:  req.Description,
		ShopTypeID:   req.ShopTypeID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tableTypes := make([]*models.TableType, 0, len(req.TableTypes))
	for _, tt := range req.TableTypes {
		if strings.TrimSpace(tt.Type) == "" || tt.Capacity < 0 {
			return nil, fmt.Errorf("register shop: table type needs a name and capacity >= 0: %w", domain.ErrInvalidInput)
		}
		tableTypes = append(tableTypes, &models.TableType{
			ID:        uuid.NewString(),
			ShopID:    shop.ID,
			Type:      strings.TrimSpace(tt.Type),
			Capacity:  tt.Capacity,
			CreatedAt: now,
		})
	}

	if err := s.store.CreateShopWithTableTypes(ctx, shop, tableTypes); err != nil {
		return nil, fmt.Errorf("register shop: %w", err)
	}
	s.logger.Info().Str("shop_id", shop.ID).Int("table_types", len(tableTypes)).Msg("shop registered")
	return shop, nil
}

func (s *ShopService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.store.GetShopByEmail(ctx, email)
	if err == nil {
		return fmt.Errorf("email %s already registered: %w", email, domain.ErrConflict)
	}
	if !isNotFound(err) {
		return err
	}
	return nil
}

func (s *ShopService) ensurePhoneFree(ctx context.Context, phone string) error {
	_, err := s.store.GetShopByPhone(ctx, phone)
	if err == nil {
		return fmt.Errorf("phone %s already registered: %w", phone, domain.ErrConflict)
	}
	if !isNotFound(err) {
		return err
	}
	return nil
}

// Authenticate checks credentials only.
func (s *ShopService) Authenticate(ctx context.Context, email, password string) (*models.Shop, error) {
	shop, err := s.store.GetShopByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("authenticate shop: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("authenticate shop: %w", err)
	}
	if !checkPassword(shop.PasswordHash, password) {
		return nil, fmt.Errorf("authenticate shop: %w", domain.ErrUnauthorized)
	}
	return shop, nil
}

func (s *ShopService) List(ctx context.Context) ([]*models.Shop, error) {
	shops, err := s.store.ListShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return shops, nil
}

func (s *ShopService) Get(ctx context.Context, id string) (*models.Shop, error) {
	shop, err := s.store.GetShop(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}
	return shop, nil
}

func (s *ShopService) ChangePhone(ctx context.Context, id, phone string) (*models.Shop, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("change shop phone: phone is required: %w", domain.ErrInvalidInput)
	}
	return s.update(ctx, id, "change shop phone", func(shop *models.Shop) error {
		if shop.PhoneNumber == phone {
			return nil
		}
		if err := requireVerified(ctx, s.otp, models.OtpTypePhone, phone); err != nil {
			return err
		}
		if err := s.ensurePhoneFree(ctx, phone); err != nil {
			return err
		}
		shop.PhoneNumber = phone
		return nil
	})
}

func (s *ShopService) ChangeEmail(ctx context.Context, id, email string) (*models.Shop, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("change shop email: email is required: %w", domain.ErrInvalidInput)
	}
	return s.update(ctx, id, "change shop email", func(shop *models.Shop) error {
		if shop.Email == email {
			return nil
		}
		if err := requireVerified(ctx, s.otp, models.OtpTypeEmail, email); err != nil {
			return err
		}
		if err := s.ensureEmailFree(ctx, email); err != nil {
			return err
		}
		shop.Email = email
		return nil
	})
}

// ChangePassword needs the current password and a code sent to the shop's phone.
func (s *ShopService) ChangePassword(ctx context.Context, id, oldPassword, newPassword, code string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("change shop password: %w", err)
	}
	_, err = s.update(ctx, id, "change shop password", func(shop *models.Shop) error {
		if !checkPassword(shop.PasswordHash, oldPassword) {
			return fmt.Errorf("old password does not match: %w", domain.ErrUnauthorized)
		}
		if err := confirmCode(ctx, s.otp, models.OtpTypePhone, shop.PhoneNumber, code); err != nil {
			return err
		}
		shop.PasswordHash = hash
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("shop_id", id).Msg("shop password changed")
	return nil
}

type ChangeAddressRequest struct {
	FullAddress string  `json:"full_address"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

func (s *ShopService) ChangeAddress(ctx context.Context, id string, req ChangeAddressRequest) (*models.Shop, error) {
	address := strings.TrimSpace(req.FullAddress)
	if address == "" {
		return nil, fmt.Errorf("change shop address: full_address is required: %w", domain.ErrInvalidInput)
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return nil, fmt.Errorf("change shop address: coordinates out of range: %w", domain.ErrInvalidInput)
	}
	return s.update(ctx, id, "change shop address", func(shop *models.Shop) error {
		shop.FullAddress = address
		shop.Lat = req.Lat
		shop.Lng = req.Lng
		return nil
	})
}

func (s *ShopService) ChangeName(ctx context.Context, id, name string) (*models.Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("change shop name: name is required: %w", domain.ErrInvalidInput)
	}
	return s.update(ctx, id, "change shop name", func(shop *models.Shop) error {
		shop.Name = name
		return nil
	})
}

func (s *ShopService) update(ctx context.Context, id, op string, apply func(*models.Shop) error) (*models.Shop, error) {
	shop, err := s.store.GetShop(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := apply(shop); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	shop.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateShop(ctx, shop); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return shop, nil
}
