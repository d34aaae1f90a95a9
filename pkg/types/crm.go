package types

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

type TimelineEventType string

const (
	TimelineEventAlertSent           TimelineEventType = "alert_sent"
	TimelineEventTicketOpened        TimelineEventType = "ticket_opened"
	TimelineEventOrderCreated        TimelineEventType = "order_created"
	TimelineEventSubscriptionRenewed TimelineEventType = "subscription_renewed"
	TimelineEventClientCreated       TimelineEventType = "client_created"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPaypal   PaymentMethod = "paypal"
	PaymentMethodOther    PaymentMethod = "other"
)

// SortOrder is the direction of a store query ordering.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)
