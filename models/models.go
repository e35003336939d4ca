package models

// All lists every table owned by the engine, in migration order.
func All() []any {
	return []any{
		&User{},
		&MissionDefinition{},
		&MissionCompletion{},
		&Badge{},
		&UserBadge{},
		&Item{},
		&UserItem{},
		&StarTransaction{},
		&DailyBonusClaim{},
		&Proposal{},
		&Vote{},
	}
}
