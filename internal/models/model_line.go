package models

import "time"

// Line is a named channel/feed attached to a subscription, e.g. "Salotto".
type Line struct {
	ID             string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string    `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	Name           string    `gorm:"column:name;type:varchar(128);not null" json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Line) TableName() string {
	return "lines"
}
