package models

import "time"

// Queue is one customer's request to be seated at a table type of a shop.
type Queue struct {
	ID                string    `json:"id" bson:"_id"`
	ShopID            string    `json:"shop_id" bson:"shop_id"`
	TableTypeID       string    `json:"table_type_id" bson:"table_type_id"`
	CustomerID        string    `json:"customer_id" bson:"customer_id"`
	TableNo           string    `json:"table_no,omitempty" bson:"table_no,omitempty"`
	QueueNumber       int       `json:"queue_number" bson:"queue_number"`
	Status            string    `json:"status" bson:"status"`
	QueueQR           string    `json:"queue_qr,omitempty" bson:"queue_qr,omitempty"`
	EstimatedWaitTime int       `json:"estimated_wait_time" bson:"estimated_wait_time"`
	NotificationSent  bool      `json:"notification_sent" bson:"notification_sent"`
	UserRequirements  string    `json:"user_requirements,omitempty" bson:"user_requirements,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at"`
}

// QueueHistory is the archived copy of a queue entry taken when its table is freed.
type QueueHistory struct {
	ID                string    `json:"id" bson:"_id"`
	QueueID           string    `json:"queue_id" bson:"queue_id"`
	ShopID            string    `json:"shop_id" bson:"shop_id"`
	TableTypeID       string    `json:"table_type_id" bson:"table_type_id"`
	CustomerID        string    `json:"customer_id" bson:"customer_id"`
	TableNo           string    `json:"table_no,omitempty" bson:"table_no,omitempty"`
	QueueNumber       int       `json:"queue_number" bson:"queue_number"`
	Status            string    `json:"status" bson:"status"`
	QueueQR           string    `json:"queue_qr,omitempty" bson:"queue_qr,omitempty"`
	EstimatedWaitTime int       `json:"estimated_wait_time" bson:"estimated_wait_time"`
	UserRequirements  string    `json:"user_requirements,omitempty" bson:"user_requirements,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	CompletedAt       time.Time `json:"completed_at" bson:"completed_at"`
}

// NewQueueHistory copies q into an archive record completed at the given time.
func NewQueueHistory(id string, q *Queue, completedAt time.Time) *QueueHistory {
	return &QueueHistory{
		ID:                id,
		QueueID:           q.ID,
		ShopID:            q.ShopID,
		TableTypeID:       q.TableTypeID,
		CustomerID:        q.CustomerID,
		TableNo:           q.TableNo,
		QueueNumber:       q.QueueNumber,
		Status:            q.Status,
		QueueQR:           q.QueueQR,
		EstimatedWaitTime: q.EstimatedWaitTime,
		UserRequirements:  q.UserRequirements,
		CreatedAt:         q.CreatedAt,
		CompletedAt:       completedAt,
	}
}

// TableStatus marks a physical table as occupied by a queue entry.
type TableStatus struct {
	ID          string    `json:"id" bson:"_id"`
	ShopID      string    `json:"shop_id" bson:"shop_id"`
	TableTypeID string    `json:"table_type_id" bson:"table_type_id"`
	TableNo     string    `json:"table_no" bson:"table_no"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	QueueID     string    `json:"queue_id" bson:"queue_id"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// NearbyQueue is a waiting entry returned by the nearby check.
type NearbyQueue struct {
	*Queue
	ShouldNotify bool `json:"should_notify"`
}

// QueueFilter selects queue entries. Empty fields match everything.
type QueueFilter struct {
	ShopID           string
	TableTypeID      string
	CustomerID       string
	Statuses         []string
	NotificationSent *bool
	CreatedSince     time.Time
	Limit            int
}

// TableFreedEvent is published on a shop channel when a table becomes free.
type TableFreedEvent struct {
	TableTypeID   string `json:"table_type_id"`
	TableTypeName string `json:"table_type_name,omitempty"`
}

// QueueNearbyEvent is published on a customer channel when their turn is close.
type QueueNearbyEvent struct {
	QueueID     string `json:"queue_id"`
	ShopID      string `json:"shop_id"`
	TableTypeID string `json:"table_type_id"`
	QueueNumber int    `json:"queue_number"`
}
