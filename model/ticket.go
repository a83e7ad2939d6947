package model

import (
	"strings"
	"time"
)

// Ticket is a pre-provisioned grant redeemable through the ticket grant.
// Resource holds a space separated list of paths the token may access.
type Ticket struct {
	Token     string    `gorm:"primaryKey;size:768"`
	Resource  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) Resources() []string {
	return strings.Fields(t.Resource)
}
