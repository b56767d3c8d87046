package storage

func schema(dialect Dialect) []string {
	documentType := "TEXT"
	if dialect == Postgres {
		documentType = "JSONB"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			accounts   ` + documentType + ` NOT NULL,
			version    BIGINT NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id             TEXT PRIMARY KEY,
			title          TEXT NOT NULL DEFAULT '',
			track_category INTEGER NOT NULL,
			platform_type  TEXT NOT NULL DEFAULT '',
			download_url   TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'unused',
			created_at     BIGINT NOT NULL,
			updated_at     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS articles_category_status ON articles (track_category, status)`,
		`CREATE TABLE IF NOT EXISTS cursors (
			service      TEXT PRIMARY KEY,
			cursor_value BIGINT NOT NULL,
			updated_at   BIGINT NOT NULL
		)`,
	}
}
