package models

import (
	"time"

	"github.com/fatflowers/iptv-crm/pkg/types"
)

// Client is a person or household buying IPTV service.
type Client struct {
	ID      string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name    string             `gorm:"column:name;type:varchar(255);not null;index" json:"name"`
	Contact string             `gorm:"column:contact;type:varchar(64)" json:"contact"`
	Email   string             `gorm:"column:email;type:varchar(255)" json:"email"`
	Notes   string             `gorm:"column:notes;type:text" json:"notes"`
	Status  types.ClientStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// CreatedAt is assigned by the store.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Client) TableName() string {
	return "clients"
}
