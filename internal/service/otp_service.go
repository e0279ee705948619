package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"tablequeue/internal/domain"
	"tablequeue/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type OtpService struct {
	store      domain.AccountStore
	limiter    domain.RateLimiter
	sender     domain.OtpSender
	clock      domain.Clock
	ttl        time.Duration
	sendLimit  int
	sendWindow time.Duration
	logger     *zerolog.Logger

	generate func() (string, error)
}

type OtpOptions struct {
	TTL        time.Duration
	SendLimit  int
	SendWindow time.Duration
}

func NewOtpService(
	store domain.AccountStore,
	limiter domain.RateLimiter,
	sender domain.OtpSender,
	clock domain.Clock,
	opts OtpOptions,
	logger *zerolog.Logger,
) *OtpService {
	if opts.TTL <= 0 {
		opts.TTL = models.DefaultOtpTTL * time.Second
	}
	if opts.SendLimit <= 0 {
		opts.SendLimit = models.DefaultOtpSendLimit
	}
	if opts.SendWindow <= 0 {
		opts.SendWindow = models.DefaultOtpSendWindow * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &OtpService{
		store:      store,
		limiter:    limiter,
		sender:     sender,
		clock:      clock,
		ttl:        opts.TTL,
		sendLimit:  opts.SendLimit,
		sendWindow: opts.SendWindow,
		logger:     logger,
		generate:   generateCode,
	}
}

func generateCode() (string, error) {
	var b strings.Builder
	for i := 0; i < models.OtpLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func validOtpType(t string) bool {
	return t == models.OtpTypePhone || t == models.OtpTypeEmail
}

// normalizeContact trims the contact; emails are case-insensitive.
func normalizeContact(otpType, contact string) string {
	contact = strings.TrimSpace(contact)
	if otpType == models.OtpTypeEmail {
		contact = strings.ToLower(contact)
	}
	return contact
}

// Send replaces any pending code for the contact with a fresh one.
func (s *OtpService) Send(ctx context.Context, otpType, contact string) (*models.Otp, error) {
	contact = normalizeContact(otpType, contact)
	if !validOtpType(otpType) || contact == "" {
		return nil, fmt.Errorf("send otp: type must be phone or email and contact is required: %w", domain.ErrInvalidInput)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "otp:"+otpType+":"+contact, s.sendLimit, s.sendWindow)
		if err != nil {
			return nil, fmt.Errorf("send otp: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("send otp: too many codes requested for %s: %w", contact, domain.ErrInvalidState)
		}
	}

	if err := s.store.DeleteUnverifiedOtps(ctx, otpType, contact); err != nil {
		return nil, fmt.Errorf("send otp: %w", err)
	}

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("send otp: generate code: %w", err)
	}
	now := s.clock.Now()
	otp := &models.Otp{
		ID:        uuid.NewString(),
		Type:      otpType,
		Contact:   contact,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.CreateOtp(ctx, otp); err != nil {
		return nil, fmt.Errorf("send otp: %w", err)
	}

	if s.sender != nil {
		if err := s.sender.SendOtp(ctx, otpType, contact, code); err != nil {
			return nil, fmt.Errorf("send otp: deliver: %w", err)
		}
	}
	return otp, nil
}

func (s *OtpService) Verify(ctx context.Context, otpType, contact, code string) error {
	if !validOtpType(otpType) {
		return fmt.Errorf("verify otp: unknown type %q: %w", otpType, domain.ErrInvalidInput)
	}
	otp, err := s.store.FindUnverifiedOtp(ctx, otpType, normalizeContact(otpType, contact), strings.TrimSpace(code))
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("verify otp: invalid or expired otp: %w", domain.ErrInvalidInput)
		}
		return fmt.Errorf("verify otp: %w", err)
	}
	if otp.Expired(s.clock.Now()) {
		return fmt.Errorf("verify otp: invalid or expired otp: %w", domain.ErrInvalidInput)
	}
	if err := s.store.MarkOtpVerified(ctx, otp.ID); err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	return nil
}

func (s *OtpService) IsVerified(ctx context.Context, otpType, contact string) (bool, error) {
	ok, err := s.store.HasVerifiedOtp(ctx, otpType, normalizeContact(otpType, contact))
	if err != nil {
		return false, fmt.Errorf("is verified: %w", err)
	}
	return ok, nil
}

// LogOtpSender writes codes to the log instead of delivering them.
type LogOtpSender struct {
	logger *zerolog.Logger
}

func NewLogOtpSender(logger *zerolog.Logger) *LogOtpSender {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogOtpSender{logger: logger}
}

func (l *LogOtpSender) SendOtp(_ context.Context, otpType, contact, code string) error {
	l.logger.Info().Str("type", otpType).Str("contact", contact).Str("code", code).Msg("otp issued")
	return nil
}
