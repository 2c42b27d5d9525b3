package db

import "database/sql"

// MigrateUp creates the relay schema. Every statement is idempotent so the
// worker runs migrations on each start.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS deliveries (
    id           SERIAL PRIMARY KEY,
    dedupe_key   TEXT NOT NULL,
    channel      TEXT NOT NULL,
    feed_name    TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL DEFAULT '',
    link         TEXT,
    delivered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (dedupe_key, channel)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS drafts (
    id           SERIAL PRIMARY KEY,
    guid         TEXT NOT NULL,
    channel      TEXT NOT NULL,
    title        TEXT NOT NULL,
    link         TEXT,
    body         TEXT NOT NULL,
    failure_kind VARCHAR(50) NOT NULL DEFAULT 'unknown',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// パフォーマンス最適化: インデックス追加
	indexes := []string{
		// 重複排除のルックバック用(channel + delivered_at で絞り込み)
		`CREATE INDEX IF NOT EXISTS idx_deliveries_channel_delivered_at ON deliveries(channel, delivered_at DESC)`,
		// 古い配信レコードの削除用
		`CREATE INDEX IF NOT EXISTS idx_deliveries_delivered_at ON deliveries(delivered_at)`,
		// 下書き一覧の新着順表示用
		`CREATE INDEX IF NOT EXISTS idx_drafts_created_at ON drafts(created_at DESC)`,
		// チャネル別下書き件数の集計用
		`CREATE INDEX IF NOT EXISTS idx_drafts_channel ON drafts(channel)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown rolls back the relay schema.
// Use with caution: this deletes all delivery history and parked drafts.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_drafts_channel`,
		`DROP INDEX IF EXISTS idx_drafts_created_at`,
		`DROP INDEX IF EXISTS idx_deliveries_delivered_at`,
		`DROP INDEX IF EXISTS idx_deliveries_channel_delivered_at`,
		`DROP TABLE IF EXISTS drafts`,
		`DROP TABLE IF EXISTS deliveries`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
