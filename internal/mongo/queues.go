package mongo

import (
	"context"
	"time"

	"tablequeue/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateQueue(ctx context.Context, q *models.Queue) error {
	_, err := s.col(colQueues).InsertOne(ctx, q)
	return wrapErr("create queue", err)
}

func (s *Store) GetQueue(ctx context.Context, id string) (*models.Queue, error) {
	var q models.Queue
	if err := s.col(colQueues).FindOne(ctx, bson.M{"_id": id}).Decode(&q); err != nil {
		return nil, wrapErr("get queue "+id, err)
	}
	return &q, nil
}

func (s *Store) UpdateQueue(ctx context.Context, q *models.Queue) error {
	res, err := s.col(colQueues).ReplaceOne(ctx, bson.M{"_id": q.ID}, q)
	if err != nil {
		return wrapErr("update queue", err)
	}
	return expectMatched(res.MatchedCount, "update queue "+q.ID)
}

func (s *Store) DeleteQueue(ctx context.Context, id string) error {
	res, err := s.col(colQueues).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr("delete queue", err)
	}
	return expectMatched(res.DeletedCount, "delete queue "+id)
}

func (s *Store) MarkQueueNotified(ctx context.Context, id string) error {
	res, err := s.col(colQueues).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"notification_sent": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return wrapErr("mark queue notified", err)
	}
	return expectMatched(res.MatchedCount, "mark queue notified "+id)
}

// ListQueues returns matching entries in admission order. Queue numbers
// restart daily, so creation time leads and the number breaks ties.
func (s *Store) ListQueues(ctx context.Context, filter models.QueueFilter) ([]*models.Queue, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "queue_number", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cursor, err := s.col(colQueues).Find(ctx, queueFilter(filter), opts)
	if err != nil {
		return nil, wrapErr("list queues", err)
	}
	defer cursor.Close(ctx)

	var out []*models.Queue
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr("decode queues", err)
	}
	return out, nil
}

func (s *Store) CountQueues(ctx context.Context, filter models.QueueFilter) (int, error) {
	n, err := s.col(colQueues).CountDocuments(ctx, queueFilter(filter))
	if err != nil {
		return 0, wrapErr("count queues", err)
	}
	return int(n), nil
}

// LockTableType touches a per table type counter document. Two transactions
// that both lock the same table type write-conflict, and the driver retries
// the later one against the committed state.
func (s *Store) LockTableType(ctx context.Context, shopID, tableTypeID string) error {
	_, err := s.col(colCounters).UpdateOne(ctx,
		bson.M{"_id": counterID(shopID, tableTypeID)},
		bson.M{"$inc": bson.M{"locks": 1}},
		options.Update().SetUpsert(true),
	)
	return wrapErr("lock table type", err)
}

func counterID(shopID, tableTypeID string) string {
	return shopID + ":" + tableTypeID
}

// MaxQueueNumberSince looks at both active and archived entries.
func (s *Store) MaxQueueNumberSince(ctx context.Context, shopID, tableTypeID string, since time.Time) (int, error) {
	filter := bson.M{
		"shop_id":       shopID,
		"table_type_id": tableTypeID,
		"created_at":    bson.M{"$gte": since.UTC()},
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "queue_number", Value: -1}}).
		SetProjection(bson.M{"queue_number": 1})

	maxNumber := 0
	for _, col := range []string{colQueues, colHistory} {
		var doc struct {
			QueueNumber int `bson:"queue_number"`
		}
		err := s.col(col).FindOne(ctx, filter, opts).Decode(&doc)
		if err != nil {
			if isNoDocuments(err) {
				continue
			}
			return 0, wrapErr("max queue number", err)
		}
		if doc.QueueNumber > maxNumber {
			maxNumber = doc.QueueNumber
		}
	}
	return maxNumber, nil
}

func queueFilter(filter models.QueueFilter) bson.M {
	m := bson.M{}
	if filter.ShopID != "" {
		m["shop_id"] = filter.ShopID
	}
	if filter.TableTypeID != "" {
		m["table_type_id"] = filter.TableTypeID
	}
	if filter.CustomerID != "" {
		m["customer_id"] = filter.CustomerID
	}
	if len(filter.Statuses) > 0 {
		m["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.NotificationSent != nil {
		m["notification_sent"] = *filter.NotificationSent
	}
	if !filter.CreatedSince.IsZero() {
		m["created_at"] = bson.M{"$gte": filter.CreatedSince.UTC()}
	}
	return m
}

func (s *Store) CreateTableStatus(ctx context.Context, ts *models.TableStatus) error {
	_, err := s.col(colTableStatus).InsertOne(ctx, ts)
	return wrapErr("create table status", err)
}

func (s *Store) CountActiveTables(ctx context.Context, shopID, tableTypeID string) (int, error) {
	n, err := s.col(colTableStatus).CountDocuments(ctx, bson.M{
		"shop_id":       shopID,
		"table_type_id": tableTypeID,
		"is_active":     true,
	})
	if err != nil {
		return 0, wrapErr("count active tables", err)
	}
	return int(n), nil
}

func (s *Store) ListTableStatus(ctx context.Context, shopID string) ([]*models.TableStatus, error) {
	cursor, err := s.col(colTableStatus).Find(ctx,
		bson.M{"shop_id": shopID, "is_active": true},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, wrapErr("list table status", err)
	}
	defer cursor.Close(ctx)

	var out []*models.TableStatus
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr("decode table status", err)
	}
	return out, nil
}

func (s *Store) TakeActiveTable(ctx context.Context, shopID, tableTypeID, tableNo string) (*models.TableStatus, error) {
	var ts models.TableStatus
	err := s.col(colTableStatus).FindOneAndDelete(ctx, bson.M{
		"shop_id":       shopID,
		"table_type_id": tableTypeID,
		"table_no":      tableNo,
		"is_active":     true,
	}).Decode(&ts)
	if err != nil {
		return nil, wrapErr("take active table "+tableNo, err)
	}
	return &ts, nil
}

func (s *Store) CreateQueueHistory(ctx context.Context, h *models.QueueHistory) error {
	_, err := s.col(colHistory).InsertOne(ctx, h)
	return wrapErr("create queue history", err)
}

func (s *Store) ListQueueHistory(ctx context.Context, shopID string) ([]*models.QueueHistory, error) {
	cursor, err := s.col(colHistory).Find(ctx,
		bson.M{"shop_id": shopID},
		options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}}),
	)
	if err != nil {
		return nil, wrapErr("list queue history", err)
	}
	defer cursor.Close(ctx)

	var out []*models.QueueHistory
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr("decode queue history", err)
	}
	return out, nil
}
