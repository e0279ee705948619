package domain

import (
	"context"
	"time"

	"tablequeue/internal/models"
)

// QueueRepository holds the queue, table status and history operations.
// The same set is available inside a unit of work.
type QueueRepository interface {
	GetTableType(ctx context.Context, id string) (*models.TableType, error)

	CreateQueue(ctx context.Context, q *models.Queue) error
	GetQueue(ctx context.Context, id string) (*models.Queue, error)
	UpdateQueue(ctx context.Context, q *models.Queue) error
	DeleteQueue(ctx context.Context, id string) error
	ListQueues(ctx context.Context, filter models.QueueFilter) ([]*models.Queue, error)
	CountQueues(ctx context.Context, filter models.QueueFilter) (int, error)
	MaxQueueNumberSince(ctx context.Context, shopID, tableTypeID string, since time.Time) (int, error)
	// LockTableType serializes units of work that decide seating for one
	// shop and table type. Call it before reading occupancy.
	LockTableType(ctx context.Context, shopID, tableTypeID string) error
	MarkQueueNotified(ctx context.Context, id string) error

	CreateTableStatus(ctx context.Context, ts *models.TableStatus) error
	CountActiveTables(ctx context.Context, shopID, tableTypeID string) (int, error)
	ListTableStatus(ctx context.Context, shopID string) ([]*models.TableStatus, error)
	// TakeActiveTable removes the active record for the table and returns it.
	TakeActiveTable(ctx context.Context, shopID, tableTypeID, tableNo string) (*models.TableStatus, error)

	CreateQueueHistory(ctx context.Context, h *models.QueueHistory) error
	ListQueueHistory(ctx context.Context, shopID string) ([]*models.QueueHistory, error)
}

// QueueStore runs queue operations directly or inside a unit of work.
// WithinTx commits when fn returns nil and rolls back otherwise.
type QueueStore interface {
	QueueRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx QueueRepository) error) error
}

type AccountStore interface {
	CreateShopWithTableTypes(ctx context.Context, shop *models.Shop, tableTypes []*models.TableType) error
	GetShop(ctx context.Context, id string) (*models.Shop, error)
	GetShopByEmail(ctx context.Context, email string) (*models.Shop, error)
	GetShopByPhone(ctx context.Context, phone string) (*models.Shop, error)
	ListShops(ctx context.Context) ([]*models.Shop, error)
	UpdateShop(ctx context.Context, shop *models.Shop) error

	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error

	CreateTableType(ctx context.Context, tt *models.TableType) error
	GetTableType(ctx context.Context, id string) (*models.TableType, error)
	ListTableTypes(ctx context.Context, shopID string) ([]*models.TableType, error)

	CreateShopType(ctx context.Context, st *models.ShopType) error
	ListShopTypes(ctx context.Context) ([]*models.ShopType, error)

	CreateOtp(ctx context.Context, otp *models.Otp) error
	DeleteUnverifiedOtps(ctx context.Context, otpType, contact string) error
	FindUnverifiedOtp(ctx context.Context, otpType, contact, code string) (*models.Otp, error)
	MarkOtpVerified(ctx context.Context, id string) error
	HasVerifiedOtp(ctx context.Context, otpType, contact string) (bool, error)
}

// Store is the full persistence gateway.
type Store interface {
	QueueStore
	AccountStore
	Ping(ctx context.Context) error
	Close() error
}

// Notifier publishes an event to subscribers of a channel.
type Notifier interface {
	Publish(ctx context.Context, channel, eventType string, payload any) error
}

// Clock supplies the current time and the local midnight for "today" scoping.
type Clock interface {
	Now() time.Time
	StartOfDay(t time.Time) time.Time
}

// RateLimiter counts hits for a key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// OtpSender delivers a verification code to a phone number or email.
type OtpSender interface {
	SendOtp(ctx context.Context, otpType, contact, code string) error
}
