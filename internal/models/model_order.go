package models

import (
	"time"

	"github.com/fatflowers/iptv-crm/pkg/types"
	"github.com/shopspring/decimal"
)

// Order records a sale: it snapshots the plan, dates and price of the
// subscription it created or renewed, plus payment details.
type Order struct {
	ID             string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ClientID       string              `gorm:"column:client_id;type:uuid;not null;index" json:"client_id"`
	SubscriptionID string              `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	PlanMonths     int                 `gorm:"column:plan_months;not null" json:"plan_months"`
	StartDate      *time.Time          `gorm:"column:start_date;type:date" json:"start_date"`
	EndDate        *time.Time          `gorm:"column:end_date;type:date" json:"end_date"`
	Price          decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	PaymentMethod  types.PaymentMethod `gorm:"column:payment_method;type:varchar(32)" json:"payment_method"`
	Paid           bool                `gorm:"column:paid;not null" json:"paid"`
	PaidAt         *time.Time          `gorm:"column:paid_at;default:null" json:"paid_at"`
	Notes          string              `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
