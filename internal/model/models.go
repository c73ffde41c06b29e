package model

// All lists the persisted entities in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Test{},
		&Question{},
		&TestAttempt{},
		&ProgressMetrics{},
	}
}
