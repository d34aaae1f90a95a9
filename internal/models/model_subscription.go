package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is a time-bounded service grant bound to a device or to IPTV
// credentials. Dates are calendar dates at UTC midnight.
type Subscription struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ClientID   string `gorm:"column:client_id;type:uuid;not null;index" json:"client_id"`
	PlanMonths int    `gorm:"column:plan_months;not null" json:"plan_months"`
	Device     string `gorm:"column:device;type:varchar(64)" json:"device"`
	MAC        string `gorm:"column:mac;type:varchar(64)" json:"mac"`
	Username   string `gorm:"column:username;type:varchar(128)" json:"username"`
	Password   string `gorm:"column:password;type:varchar(128)" json:"password,omitempty"`
	// M3UURL holds either an M3U playlist link or a portal/server url.
	M3UURL      string          `gorm:"column:m3u_url;type:text" json:"m3u_url"`
	PackageName string          `gorm:"column:package_name;type:varchar(128)" json:"package_name"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	StartDate   *time.Time      `gorm:"column:start_date;type:date" json:"start_date"`
	// EndDate is the last day of service, inclusive.
	EndDate   *time.Time `gorm:"column:end_date;type:date;index" json:"end_date"`
	Active    bool       `gorm:"column:active;not null" json:"active"`
	IsTrial   bool       `gorm:"column:is_trial;not null" json:"is_trial"`
	Notes     string     `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Credential is the identifier quoted to the client in reminders.
func (s *Subscription) Credential() string {
	switch {
	case s.MAC != "":
		return s.MAC
	case s.Username != "":
		return s.Username
	}
	return s.Device
}
