package models

import (
	"time"

	"github.com/fatflowers/iptv-crm/pkg/types"

	"gorm.io/datatypes"
)

// TimelineEvent is an append-only entry in a client's history.
type TimelineEvent struct {
	ID          string                  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ClientID    string                  `gorm:"column:client_id;type:uuid;not null;index:idx_timeline_client_created,priority:1" json:"client_id"`
	EventType   types.TimelineEventType `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	Description string                  `gorm:"column:description;type:text" json:"description"`
	// Metadata carries event specific context such as subscription_id or the reminder window.
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"index:idx_timeline_client_created,priority:2" json:"created_at"`
}

func (TimelineEvent) TableName() string {
	return "timeline_events"
}
