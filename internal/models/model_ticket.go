package models

import (
	"time"

	"github.com/fatflowers/iptv-crm/pkg/types"
)

type Ticket struct {
	ID          string               `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ClientID    string               `gorm:"column:client_id;type:uuid;not null;index" json:"client_id"`
	Subject     string               `gorm:"column:subject;type:varchar(255);not null" json:"subject"`
	Description string               `gorm:"column:description;type:text" json:"description"`
	Priority    types.TicketPriority `gorm:"column:priority;type:varchar(16);not null" json:"priority"`
	Status      types.TicketStatus   `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	ResolvedAt  *time.Time           `gorm:"column:resolved_at;default:null" json:"resolved_at"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}
