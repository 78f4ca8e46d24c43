package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Slides in presentation order. Image bytes live inline; decks are small.
		`CREATE TABLE IF NOT EXISTS slides (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			filename TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('upload', 'demo')),
			size INTEGER NOT NULL DEFAULT 0,
			data BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_slides_position ON slides(position)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
