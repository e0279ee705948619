package mongo

import (
	"context"
	"errors"

	"tablequeue/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// CreateShopWithTableTypes inserts the shop and its initial table types atomically.
func (s *Store) CreateShopWithTableTypes(ctx context.Context, shop *models.Shop, tableTypes []*models.TableType) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.col(colShops).InsertOne(ctx, shop); err != nil {
			return wrapErr("create shop", err)
		}
		for _, tt := range tableTypes {
			if err := s.CreateTableType(ctx, tt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) findShop(ctx context.Context, filter bson.M) (*models.Shop, error) {
	var shop models.Shop
	if err := s.col(colShops).FindOne(ctx, filter).Decode(&shop); err != nil {
		return nil, wrapErr("get shop", err)
	}
	return &shop, nil
}

func (s *Store) GetShop(ctx context.Context, id string) (*models.Shop, error) {
	return s.findShop(ctx, bson.M{"_id": id})
}

func (s *Store) GetShopByEmail(ctx context.Context, email string) (*models.Shop, error) {
	return s.findShop(ctx, bson.M{"email": email})
}

func (s *Store) GetShopByPhone(ctx context.Context, phone string) (*models.Shop, error) {
	return s.findShop(ctx, bson.M{"phone_number": phone})
}

func (s *Store) ListShops(ctx context.Context) ([]*models.Shop, error) {
	cursor, err := s.col(colShops).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, wrapErr("list shops", err)
	}
	defer cursor.Close(ctx)

	var out []*models.Shop
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr("decode shops", err)
	}
	return out, nil
}

func (s *Store) UpdateShop(ctx context.Context, shop *models.Shop) error {
	res, err := s.col(colShops).ReplaceOne(ctx, bson.M{"_id": shop.ID}, shop)
	if err != nil {
		return wrapErr("update shop", err)
	}
	return expectMatched(res.MatchedCount, "update shop "+shop.ID)
}

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	_, err := s.col(colCustomers).InsertOne(ctx, c)
	return wrapErr("create customer", err)
}

func (s *Store) findCustomer(ctx context.Context, filter bson.M) (*models.Customer, error) {
	var c models.Customer
	if err := s.col(colCustomers).FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, wrapErr("get customer", err)
	}
	return &c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return s.findCustomer(ctx, bson.M{"_id": id})
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	return s.findCustomer(ctx, bson.M{"phone_number": phone})
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	if email == "" {
		return nil, wrapErr("get customer by email", mongo.ErrNoDocuments)
	}
	return s.findCustomer(ctx, bson.M{"email": email})
}

func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	res, err := s.col(colCustomers).ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return wrapErr("update customer", err)
	}
	return expectMatched(res.MatchedCount, "update customer "+c.ID)
}

func (s *Store) CreateTableType(ctx context.Context, tt *models.TableType) error {
	_, err := s.col(colTableTypes).InsertOne(ctx, tt)
	return wrapErr("create table type", err)
}

func (s *Store) GetTableType(ctx context.Context, id string) (*models.TableType, error) {
	var tt models.TableType
	if err := s.col(colTableTypes).FindOne(ctx, bson.M{"_id": id}).Decode(&tt); err != nil {
		return nil, wrapErr("get table type "+id, err)
	}
	return &tt, nil
}

// ListTableTypes lists a shop's table types, or all of them for an empty shopID.
func (s *Store) ListTableTypes(ctx context.Context, shopID string) ([]*models.TableType, error) {
	filter := bson.M{}
	if shopID != "" {
		filter["shop_id"] = shopID
	}
	cursor, err := s.col(colTableTypes).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, wrapErr("list table types", err)
	}
	defer cursor.Close(ctx)

	var out []*models.TableType
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr("decode table types", err)
	}
	return out, nil
}

func (s *Store) CreateShopType(ctx context.Context, st *models.ShopType) error {
	_, err := s.col(colShopTypes).InsertOne(ctx, st)
	return wrapErr("create shop type", err)
}

func (s *Store) ListShopTypes(ctx context.Context) ([]*models.ShopType, error) {
	cursor, err := s.col(colShopTypes).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, wrapErr("list shop types", err)
	}
	defer cursor.Close(ctx)

	var out []*models.ShopType
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr("decode shop types", err)
	}
	return out, nil
}

func (s *Store) CreateOtp(ctx context.Context, otp *models.Otp) error {
	_, err := s.col(colOtps).InsertOne(ctx, otp)
	return wrapErr("create otp", err)
}

func (s *Store) DeleteUnverifiedOtps(ctx context.Context, otpType, contact string) error {
	_, err := s.col(colOtps).DeleteMany(ctx, bson.M{"type": otpType, "contact": contact, "is_verified": false})
	return wrapErr("delete unverified otps", err)
}

func (s *Store) FindUnverifiedOtp(ctx context.Context, otpType, contact, code string) (*models.Otp, error) {
	var otp models.Otp
	err := s.col(colOtps).FindOne(ctx,
		bson.M{"type": otpType, "contact": contact, "code": code, "is_verified": false},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&otp)
	if err != nil {
		return nil, wrapErr("find otp", err)
	}
	return &otp, nil
}

func (s *Store) MarkOtpVerified(ctx context.Context, id string) error {
	res, err := s.col(colOtps).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_verified": true}})
	if err != nil {
		return wrapErr("mark otp verified", err)
	}
	return expectMatched(res.MatchedCount, "mark otp verified "+id)
}

func (s *Store) HasVerifiedOtp(ctx context.Context, otpType, contact string) (bool, error) {
	n, err := s.col(colOtps).CountDocuments(ctx,
		bson.M{"type": otpType, "contact": contact, "is_verified": true},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, wrapErr("check verified otp", err)
	}
	return n > 0, nil
}
