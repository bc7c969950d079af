package models

import (
	"fmt"
	"time"
)

// Subscription stores one browser push registration. The endpoint URL is
// assigned by the browser's push service and is globally unique: a
// re-subscribe with the same endpoint rotates the keys in place instead
// of creating a second row.
type Subscription struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dhKey string    `db:"p256dh_key" json:"p256dh_key"` // EC public key for payload encryption, base64url
	AuthKey   string    `db:"auth_key" json:"auth_key"`     // Shared auth secret, base64url
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ValidationError reports a malformed subscription payload at
// registration time.
type ValidationError struct {
	Field string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("subscription field %s must not be empty", e.Field)
}

// Validate checks the fields a browser must always supply.
func (s Subscription) Validate() error {
	if len(s.Endpoint) == 0 {
		return ValidationError{Field: "endpoint"}
	}
	if len(s.P256dhKey) == 0 {
		return ValidationError{Field: "p256dh_key"}
	}
	if len(s.AuthKey) == 0 {
		return ValidationError{Field: "auth_key"}
	}
	return nil
}
