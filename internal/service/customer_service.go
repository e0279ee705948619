package service

import (
	"context"
	"fmt"
	"strings"

	"tablequeue/internal/domain"
	"tablequeue/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type CustomerService struct {
	store  domain.AccountStore
	otp    verifier
	clock  domain.Clock
	logger *zerolog.Logger
}

func NewCustomerService(store domain.AccountStore, otp verifier, clock domain.Clock, logger *zerolog.Logger) *CustomerService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CustomerService{store: store, otp: otp, clock: clock, logger: logger}
}

type RegisterCustomerRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	ProfileImg  string `json:"profile_img"`
}

func (s *CustomerService) Register(ctx context.Context, req RegisterCustomerRequest) (*models.Customer, error) {
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if strings.TrimSpace(req.Name) == "" || req.PhoneNumber == "" {
		return nil, fmt.Errorf("register customer: name and phone_number are required: %w", domain.ErrInvalidInput)
	}
	if err := requireVerified(ctx, s.otp, models.OtpTypePhone, req.PhoneNumber); err != nil {
		return nil, fmt.Errorf("register customer: %w", err)
	}
	if err := s.ensurePhoneFree(ctx, req.PhoneNumber); err != nil {
		return nil, fmt.Errorf("register customer: %w", err)
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register customer: %w", err)
	}

	now := s.clock.Now()
	c := &models.Customer{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		ProfileImg:   req.ProfileImg,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("register customer: %w", err)
	}
	s.logger.Info().Str("customer_id", c.ID).Msg("customer registered")
	return c, nil
}

func (s *CustomerService) ensurePhoneFree(ctx context.Context, phone string) error {
	_, err := s.store.GetCustomerByPhone(ctx, phone)
	if err == nil {
		return fmt.Errorf("phone %s already registered: %w", phone, domain.ErrConflict)
	}
	if !isNotFound(err) {
		return err
	}
	return nil
}

func (s *CustomerService) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	c, err := s.store.GetCustomerByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return nil, fmt.Errorf("find customer by phone: %w", err)
	}
	return c, nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *CustomerService) Authenticate(ctx context.Context, phone, password string) (*models.Customer, error) {
	c, err := s.store.GetCustomerByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("authenticate customer: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("authenticate customer: %w", err)
	}
	if !checkPassword(c.PasswordHash, password) {
		return nil, fmt.Errorf("authenticate customer: %w", domain.ErrUnauthorized)
	}
	return c, nil
}

func (s *CustomerService) ChangePhone(ctx context.Context, id, phone string) (*models.Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("change customer phone: phone is required: %w", domain.ErrInvalidInput)
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("change customer phone: %w", err)
	}
	if c.PhoneNumber == phone {
		return c, nil
	}
	if err := requireVerified(ctx, s.otp, models.OtpTypePhone, phone); err != nil {
		return nil, fmt.Errorf("change customer phone: %w", err)
	}
	if err := s.ensurePhoneFree(ctx, phone); err != nil {
		return nil, fmt.Errorf("change customer phone: %w", err)
	}
	c.PhoneNumber = phone
	c.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("change customer phone: %w", err)
	}
	return c, nil
}

// ChangePassword needs the current password and a code sent to the customer's phone.
func (s *CustomerService) ChangePassword(ctx context.Context, id, oldPassword, newPassword, code string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("change customer password: %w", err)
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return fmt.Errorf("change customer password: %w", err)
	}
	if !checkPassword(c.PasswordHash, oldPassword) {
		return fmt.Errorf("change customer password: old password does not match: %w", domain.ErrUnauthorized)
	}
	if err := confirmCode(ctx, s.otp, models.OtpTypePhone, c.PhoneNumber, code); err != nil {
		return fmt.Errorf("change customer password: %w", err)
	}
	c.PasswordHash = hash
	c.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return fmt.Errorf("change customer password: %w", err)
	}
	s.logger.Info().Str("customer_id", id).Msg("customer password changed")
	return nil
}

type ChangeEmailRequest struct {
	Email   string `json:"email"`
	OldCode string `json:"old_otp"`
	NewCode string `json:"new_otp"`
}

// ChangeEmail needs a code for the new address and, when one is set, for
// the current address too.
func (s *CustomerService) ChangeEmail(ctx context.Context, id string, req ChangeEmailRequest) (*models.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, fmt.Errorf("change customer email: email is required: %w", domain.ErrInvalidInput)
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("change customer email: %w", err)
	}
	if c.Email == email {
		return c, nil
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, fmt.Errorf("change customer email: %w", err)
	}
	if c.Email != "" {
		if err := confirmCode(ctx, s.otp, models.OtpTypeEmail, c.Email, req.OldCode); err != nil {
			return nil, fmt.Errorf("change customer email: %w", err)
		}
	}
	if err := confirmCode(ctx, s.otp, models.OtpTypeEmail, email, req.NewCode); err != nil {
		return nil, fmt.Errorf("change customer email: %w", err)
	}
	c.Email = email
	c.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("change customer email: %w", err)
	}
	return c, nil
}

func (s *CustomerService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.store.GetCustomerByEmail(ctx, email)
	if err == nil {
		return fmt.Errorf("email %s already registered: %w", email, domain.ErrConflict)
	}
	if !isNotFound(err) {
		return err
	}
	return nil
}

func (s *CustomerService) ChangeName(ctx context.Context, id, name string) (*models.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("change customer name: name is required: %w", domain.ErrInvalidInput)
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("change customer name: %w", err)
	}
	c.Name = name
	c.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("change customer name: %w", err)
	}
	return c, nil
}
