package models

import "time"

type Shop struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	FullAddress  string    `json:"full_address" bson:"full_address"`
	Lat          float64   `json:"lat" bson:"lat"`
	Lng          float64   `json:"lng" bson:"lng"`
	PhoneNumber  string    `json:"phone_number" bson:"phone_number"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	ShopImg      string    `json:"shop_img,omitempty" bson:"shop_img,omitempty"`
	ShopTitle    string    `json:"shop_title,omitempty" bson:"shop_title,omitempty"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	ShopTypeID   string    `json:"shop_type_id,omitempty" bson:"shop_type_id,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

type Customer struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email,omitempty" bson:"email,omitempty"`
	PhoneNumber  string    `json:"phone_number" bson:"phone_number"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	ProfileImg   string    `json:"profile_img,omitempty" bson:"profile_img,omitempty"`
	IsVerified   bool      `json:"is_verified" bson:"is_verified"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// TableType is a class of tables in a shop. Capacity is the number of
// physical tables of that class.
type TableType struct {
	ID        string    `json:"id" bson:"_id" yaml:"id"`
	ShopID    string    `json:"shop_id" bson:"shop_id" yaml:"shop_id"`
	Type      string    `json:"type" bson:"type" yaml:"type"`
	Capacity  int       `json:"capacity" bson:"capacity" yaml:"capacity"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" yaml:"-"`
}

type ShopType struct {
	ID        string    `json:"id" bson:"_id" yaml:"id"`
	Name      string    `json:"name" bson:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" yaml:"-"`
}

// Otp is a one-time verification code sent to a phone number or email.
type Otp struct {
	ID         string    `json:"id" bson:"_id"`
	Type       string    `json:"type" bson:"type"`
	Contact    string    `json:"contact" bson:"contact"`
	Code       string    `json:"-" bson:"code"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at"`
	IsVerified bool      `json:"is_verified" bson:"is_verified"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (o *Otp) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
