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
)

// CatalogService manages table types and shop types.
type CatalogService struct {
	store  domain.AccountStore
	clock  domain.Clock
	logger *zerolog.Logger
}

func NewCatalogService(store domain.AccountStore, clock domain.Clock, logger *zerolog.Logger) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogService{store: store, clock: clock, logger: logger}
}

type CreateTableTypeRequest struct {
	ShopID   string `json:"shop_id"`
	Type     string `json:"type"`
	Capacity int    `json:"capacity"`
}

func (s *CatalogService) CreateTableType(ctx context.Context, req CreateTableTypeRequest) (*models.TableType, error) {
	if req.ShopID == "" || strings.TrimSpace(req.Type) == "" {
		return nil, fmt.Errorf("create table type: shop_id and type are required: %w", domain.ErrInvalidInput)
	}
	if req.Capacity < 0 {
		return nil, fmt.Errorf("create table type: capacity must be >= 0: %w", domain.ErrInvalidInput)
	}
	if _, err := s.store.GetShop(ctx, req.ShopID); err != nil {
		return nil, fmt.Errorf("create table type: %w", err)
	}

	tt := &models.TableType{
		ID:        uuid.NewString(),
		ShopID:    req.ShopID,
		Type:      strings.TrimSpace(req.Type),
		Capacity:  req.Capacity,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateTableType(ctx, tt); err != nil {
		return nil, fmt.Errorf("create table type: %w", err)
	}
	return tt, nil
}

// ListTableTypes returns all table types when shopID is empty.
func (s *CatalogService) ListTableTypes(ctx context.Context, shopID string) ([]*models.TableType, error) {
	list, err := s.store.ListTableTypes(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("list table types: %w", err)
	}
	return list, nil
}

func (s *CatalogService) GetTableType(ctx context.Context, id string) (*models.TableType, error) {
	tt, err := s.store.GetTableType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get table type: %w", err)
	}
	return tt, nil
}

func (s *CatalogService) CreateShopType(ctx context.Context, name string) (*models.ShopType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create shop type: name is required: %w", domain.ErrInvalidInput)
	}
	st := &models.ShopType{ID: uuid.NewString(), Name: name, CreatedAt: s.clock.Now()}
	if err := s.store.CreateShopType(ctx, st); err != nil {
		return nil, fmt.Errorf("create shop type: %w", err)
	}
	return st, nil
}

func (s *CatalogService) ListShopTypes(ctx context.Context) ([]*models.ShopType, error) {
	list, err := s.store.ListShopTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shop types: %w", err)
	}
	return list, nil
}

// SeedShopTypes inserts the given shop types, skipping names that already exist.
func (s *CatalogService) SeedShopTypes(ctx context.Context, types []models.ShopType) (int, error) {
	created := 0
	for _, st := range types {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			continue
		}
		record := &models.ShopType{ID: st.ID, Name: name, CreatedAt: s.clock.Now()}
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		err := s.store.CreateShopType(ctx, record)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed shop types: %w", err)
		}
		created++
	}
	s.logger.Info().Int("created", created).Int("total", len(types)).Msg("shop types seeded")
	return created, nil
}
