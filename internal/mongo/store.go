package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablequeue/internal/config"
	"tablequeue/internal/domain"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colShops       = "shops"
	colCustomers   = "customers"
	colTableTypes  = "table_types"
	colShopTypes   = "shop_types"
	colQueues      = "queues"
	colTableStatus = "table_status"
	colHistory     = "queue_history"
	colOtps        = "otps"
	colCounters    = "queue_counters"
)

// Store is the MongoDB implementation of domain.Store. Units of work use
// multi-document transactions, so the server must run as a replica set.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zerolog.Logger
}

var _ domain.Store = (*Store)(nil)

func NewStore(ctx context.Context, cfg config.MongoConfig, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	connString := cfg.URL
	if connString == "" {
		connString = "mongodb://localhost:27017"
	}
	dbName := cfg.Name
	if dbName == "" {
		dbName = "tablequeue"
	}

	clientOptions := options.Client().ApplyURI(connString).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName), logger: logger}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info().Str("database", dbName).Msg("connected to MongoDB")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		colShops: {
			unique(bson.D{{Key: "email", Value: 1}}),
			unique(bson.D{{Key: "phone_number", Value: 1}}),
		},
		colCustomers: {
			unique(bson.D{{Key: "phone_number", Value: 1}}),
			plain(bson.D{{Key: "email", Value: 1}}),
		},
		colShopTypes: {
			unique(bson.D{{Key: "name", Value: 1}}),
		},
		colTableTypes: {
			plain(bson.D{{Key: "shop_id", Value: 1}}),
		},
		colQueues: {
			plain(bson.D{{Key: "shop_id", Value: 1}, {Key: "table_type_id", Value: 1}, {Key: "status", Value: 1}}),
			plain(bson.D{{Key: "customer_id", Value: 1}}),
		},
		colTableStatus: {
			{
				Keys: bson.D{{Key: "shop_id", Value: 1}, {Key: "table_type_id", Value: 1}, {Key: "table_no", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
		},
		colHistory: {
			plain(bson.D{{Key: "shop_id", Value: 1}, {Key: "completed_at", Value: -1}}),
		},
		colOtps: {
			plain(bson.D{{Key: "type", Value: 1}, {Key: "contact", Value: 1}, {Key: "is_verified", Value: 1}}),
		},
	}

	for col, list := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, list); err != nil {
			return fmt.Errorf("cannot create indexes on %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	return nil
}

// WithinTx runs fn in a session transaction. The driver may call fn again on
// transient errors, so fn must not keep state between attempts.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.QueueRepository) error) error {
	return s.withTx(ctx, func(sc context.Context) error {
		return fn(sc, s)
	})
}

func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("cannot start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// wrapErr maps driver errors onto the domain taxonomy.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func expectMatched(matched int64, op string) error {
	if matched == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
