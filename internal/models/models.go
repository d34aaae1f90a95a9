package models

// All lists every persisted model, in dependency order, for migrations.
func All() []any {
	return []any{
		&Client{},
		&Subscription{},
		&Line{},
		&TimelineEvent{},
		&Ticket{},
		&Order{},
	}
}
