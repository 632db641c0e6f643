package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

var migrations = []struct {
	name  string
	query string
}{
	{
		name: "001_artists",
		query: `CREATE TABLE IF NOT EXISTS artists (
			user_id BIGINT PRIMARY KEY,
			dt_crawled BIGINT NOT NULL DEFAULT 0,
			retrieved_tracks BOOLEAN NOT NULL DEFAULT FALSE,
			permalink TEXT UNIQUE,
			username TEXT,
			track_count BIGINT,
			playlist_count BIGINT,
			followers_count BIGINT,
			followings_count BIGINT,
			likes_count BIGINT,
			reposts_count BIGINT,
			comments_count BIGINT,
			country TEXT,
			city TEXT,
			last_modified TEXT,
			plan TEXT,
			subscriptions TEXT
		);`,
	},
	{
		name: "002_profile_urls",
		query: `CREATE TABLE IF NOT EXISTS profile_urls (
			permalink TEXT PRIMARY KEY,
			dt_crawled BIGINT NOT NULL DEFAULT 0,
			profiles_scraped INT NOT NULL DEFAULT 0,
			seq BIGSERIAL
		);`,
	},
	{
		name: "003_tracks",
		query: `CREATE TABLE IF NOT EXISTS tracks (
			track_id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			dt_crawled BIGINT NOT NULL,
			title TEXT,
			permalink TEXT,
			permalink_url TEXT,
			genre TEXT,
			tag_list TEXT,
			public BOOLEAN,
			sharing TEXT,
			state TEXT,
			policy TEXT,
			label_name TEXT,
			license TEXT,
			monetization_model TEXT,
			commentable BOOLEAN,
			streamable BOOLEAN,
			downloadable BOOLEAN,
			has_downloads_left BOOLEAN,
			embeddable_by TEXT,
			created_at TEXT,
			display_date TEXT,
			release_date TEXT,
			last_modified TEXT,
			duration BIGINT,
			full_duration BIGINT,
			playback_count BIGINT,
			likes_count BIGINT,
			reposts_count BIGINT,
			comment_count BIGINT,
			download_count BIGINT
		);`,
	},
	{
		name: "004_engagement",
		query: `CREATE TABLE IF NOT EXISTS comments (
			comment_id BIGINT PRIMARY KEY,
			track_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			created_at TEXT,
			"timestamp" BIGINT,
			body TEXT
		);
		CREATE TABLE IF NOT EXISTS track_reposters (
			track_id BIGINT PRIMARY KEY,
			reposters BIGINT[] NOT NULL
		);
		CREATE TABLE IF NOT EXISTS track_likers (
			track_id BIGINT PRIMARY KEY,
			likers BIGINT[] NOT NULL
		);`,
	},
	{
		name:  "005_indexes",
		query: `CREATE INDEX IF NOT EXISTS idx_artists_pending ON artists(retrieved_tracks, dt_crawled);
			CREATE INDEX IF NOT EXISTS idx_comments_track ON comments(track_id);`,
	},
}

// Migrate cria o schema. Todas as migrations são idempotentes.
func (p *Postgres) Migrate(ctx context.Context) error {
	log.Info().Msg("[Store] verificando schema do banco")
	for _, m := range migrations {
		if _, err := p.pool.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	log.Info().Int("migrations", len(migrations)).Msg("[Store] schema ok")
	return nil
}
