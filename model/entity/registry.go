package entity

// AllModels returns every model managed by AutoMigrate.
// Add new tables here rather than in the migrate command.
func AllModels() []interface{} {
	return []interface{}{
		&Asset{},
		&Inspection{},
		&RecycleRecord{},
		&MaterialStock{},
		&ArtPiece{},
		&PanelOrder{},
		&ArtOrder{},
		&MaterialOrder{},
		&LedgerOutbox{},
	}
}
