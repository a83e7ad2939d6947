package model

import (
	"time"
)

// IssuedToken is the single active access token of a client. The unique
// index on ClientID keeps at most one row per client.
type IssuedToken struct {
	Token           string    `gorm:"primaryKey;size:768" json:"token"`
	Me              string    `gorm:"size:512;not null" json:"me"`
	ClientID        string    `gorm:"uniqueIndex;size:512;not null" json:"client_id"`
	Scope           string    `gorm:"size:1024;not null;default:''" json:"scope"`
	IssuedAt        time.Time `gorm:"not null" json:"issued_at"`
	ExpiresAt       int64     `gorm:"not null" json:"expires_at"` // unix seconds
	AppMetadataJSON string    `gorm:"type:text" json:"app_metadata_json"`
}

func (IssuedToken) TableName() string {
	return "issued_tokens"
}

func (t *IssuedToken) Expired(now time.Time) bool {
	return now.Unix() >= t.ExpiresAt
}

type RevokedToken struct {
	Token     string    `gorm:"primaryKey;size:768"`
	RevokedAt time.Time `gorm:"autoCreateTime"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
