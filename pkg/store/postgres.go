package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loviiin/soundgraph/pkg/models"
)

// Postgres é o Store de produção.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open conecta, faz ping e roda as migrations.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database url inválida: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("banco não responde: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) ListExistingContentIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT track_id FROM tracks ORDER BY track_id`)
	if err != nil {
		return nil, fmt.Errorf("listar tracks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("listar tracks: %w", err)
	}
	return ids, nil
}

const profileColumns = `user_id, dt_crawled, retrieved_tracks, COALESCE(permalink, ''), COALESCE(username, ''),
	COALESCE(track_count, 0), COALESCE(playlist_count, 0), COALESCE(followers_count, 0),
	COALESCE(followings_count, 0), COALESCE(likes_count, 0), COALESCE(reposts_count, 0),
	COALESCE(comments_count, 0), COALESCE(country, ''), COALESCE(city, ''),
	COALESCE(last_modified, ''), COALESCE(plan, ''), COALESCE(subscriptions, '')`

func (p *Postgres) ListProfiles(ctx context.Context, f ProfileFilter) ([]models.Profile, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.ContentEnumerated != nil {
		where = append(where, "retrieved_tracks = "+arg(*f.ContentEnumerated))
	}
	if len(f.Permalinks) > 0 {
		where = append(where, "permalink = ANY("+arg(f.Permalinks)+")")
	}
	if len(f.UserIDs) > 0 {
		where = append(where, "user_id = ANY("+arg(f.UserIDs)+")")
	}
	if f.MaxFollowers > 0 {
		where = append(where, "COALESCE(followers_count, 0) <= "+arg(f.MaxFollowers))
	}

	q := "SELECT " + profileColumns + " FROM artists"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.OrderByCrawled {
		q += " ORDER BY dt_crawled, user_id"
	} else {
		q += " ORDER BY user_id"
	}
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listar perfis: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Profile, error) {
		var pr models.Profile
		err := row.Scan(&pr.UserID, &pr.CrawledAt, &pr.ContentEnumerated, &pr.Permalink, &pr.Username,
			&pr.TrackCount, &pr.PlaylistCount, &pr.FollowersCount, &pr.FollowingsCount, &pr.LikesCount,
			&pr.RepostsCount, &pr.CommentsCount, &pr.Country, &pr.City, &pr.LastModified, &pr.Plan,
			&pr.Subscriptions)
		return pr, err
	})
}

func (p *Postgres) ListCandidates(ctx context.Context, f CandidateFilter) ([]models.ProfileURL, error) {
	var (
		where []string
		args  []any
	)
	if f.UnprocessedOnly {
		where = append(where, "c.dt_crawled = 0")
	}
	if f.HasProfile != nil {
		exists := "EXISTS (SELECT 1 FROM artists a WHERE a.permalink = c.permalink)"
		if !*f.HasProfile {
			exists = "NOT " + exists
		}
		where = append(where, exists)
	}
	if f.MaxFollowers > 0 {
		args = append(args, f.MaxFollowers)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM artists a WHERE a.permalink = c.permalink AND COALESCE(a.followers_count, 0) <= $%d)", len(args)))
	}
	q := "SELECT c.permalink, c.dt_crawled, c.profiles_scraped FROM profile_urls c"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY c.seq"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listar candidatos: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ProfileURL, error) {
		var c models.ProfileURL
		err := row.Scan(&c.Permalink, &c.CrawledAt, &c.ProfilesDiscovered)
		return c, err
	})
}

func (p *Postgres) Upsert(ctx context.Context, records ...models.Record) error {
	if len(records) == 0 {
		return nil
	}
	return WithTransaction(ctx, p.pool, func(tx pgx.Tx) error {
		return insertBatch(ctx, tx, records)
	})
}

func (p *Postgres) ApplyToggle(ctx context.Context, t models.Toggle) error {
	q, args, err := toggleSQL(t)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("toggle %s %s: %w", t.Kind, t.Key(), err)
	}
	return nil
}

// Commit grava o lote e aplica os toggles na mesma transação.
func (p *Postgres) Commit(ctx context.Context, records []models.Record, toggles []models.Toggle) error {
	return WithTransaction(ctx, p.pool, func(tx pgx.Tx) error {
		if err := insertBatch(ctx, tx, records); err != nil {
			return err
		}
		for _, t := range toggles {
			q, args, err := toggleSQL(t)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, q, args...); err != nil {
				return fmt.Errorf("toggle %s %s: %w", t.Kind, t.Key(), err)
			}
		}
		return nil
	})
}

const batchSize = 500

func insertBatch(ctx context.Context, tx pgx.Tx, records []models.Record) error {
	for i := 0; i < len(records); i += batchSize {
		j := min(i+batchSize, len(records))
		b := &pgx.Batch{}
		for _, r := range records[i:j] {
			q, args, err := insertSQL(r)
			if err != nil {
				return err
			}
			b.Queue(q, args...)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("gravar lote: %w", err)
		}
	}
	return nil
}

func insertSQL(r models.Record) (string, []any, error) {
	switch v := r.(type) {
	case models.Profile:
		return `INSERT INTO artists
			(user_id, dt_crawled, retrieved_tracks, permalink, username, track_count, playlist_count,
			 followers_count, followings_count, likes_count, reposts_count, comments_count,
			 country, city, last_modified, plan, subscriptions)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT DO NOTHING`,
			[]any{v.UserID, v.CrawledAt, v.ContentEnumerated, nullIfEmpty(v.Permalink), v.Username, v.TrackCount,
				v.PlaylistCount, v.FollowersCount, v.FollowingsCount, v.LikesCount, v.RepostsCount,
				v.CommentsCount, v.Country, v.City, v.LastModified, v.Plan, v.Subscriptions}, nil
	case models.ProfileURL:
		return `INSERT INTO profile_urls (permalink, dt_crawled, profiles_scraped)
			VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
			[]any{v.Permalink, v.CrawledAt, v.ProfilesDiscovered}, nil
	case models.Track:
		return `INSERT INTO tracks
			(track_id, user_id, dt_crawled, title, permalink, permalink_url, genre, tag_list, public,
			 sharing, state, policy, label_name, license, monetization_model, commentable, streamable,
			 downloadable, has_downloads_left, embeddable_by, created_at, display_date, release_date,
			 last_modified, duration, full_duration, playback_count, likes_count, reposts_count,
			 comment_count, download_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,
			        $24,$25,$26,$27,$28,$29,$30,$31)
			ON CONFLICT DO NOTHING`,
			[]any{v.TrackID, v.UserID, v.CrawledAt, v.Title, v.Permalink, v.PermalinkURL, v.Genre,
				v.TagList, v.Public, v.Sharing, v.State, v.Policy, v.LabelName, v.License,
				v.MonetizationModel, v.Commentable, v.Streamable, v.Downloadable, v.HasDownloadsLeft,
				v.EmbeddableBy, v.CreatedAt, v.DisplayDate, v.ReleaseDate, v.LastModified, v.Duration,
				v.FullDuration, v.PlaybackCount, v.LikesCount, v.RepostsCount, v.CommentCount,
				v.DownloadCount}, nil
	case models.Comment:
		return `INSERT INTO comments (comment_id, track_id, user_id, created_at, "timestamp", body)
			VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT DO NOTHING`,
			[]any{v.CommentID, v.TrackID, v.UserID, v.CreatedAt, v.Timestamp, v.Body}, nil
	case models.EngagerSet:
		if v.Kind == models.Likers {
			return `INSERT INTO track_likers (track_id, likers) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
				[]any{v.TrackID, v.UserIDs}, nil
		}
		return `INSERT INTO track_reposters (track_id, reposters) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			[]any{v.TrackID, v.UserIDs}, nil
	}
	return "", nil, fmt.Errorf("store: tipo de registro não suportado %T", r)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toggleSQL(t models.Toggle) (string, []any, error) {
	switch t.Kind {
	case models.ToggleEnumerated:
		return `UPDATE artists SET retrieved_tracks = TRUE WHERE user_id = $1`, []any{t.UserID}, nil
	case models.ToggleProcessed:
		// dt_crawled = 0 impede remarcar um candidato já processado
		return `UPDATE profile_urls SET profiles_scraped = $2, dt_crawled = $3
			WHERE permalink = $1 AND dt_crawled = 0`, []any{t.Permalink, t.Discovered, t.At}, nil
	}
	return "", nil, fmt.Errorf("store: toggle desconhecido %q", t.Kind)
}
