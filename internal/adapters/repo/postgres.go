package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vport-feed/internal/domain"
	"vport-feed/internal/infra/metrics"
)

// Postgres реализует репозитории ленты на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PostRepo   = (*Postgres)(nil)
	_ domain.AuthorRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListUserPosts возвращает новейшие личные посты.
// Фильтр по видео null-безопасен: запись без типа медиа не считается видео.
func (p *Postgres) ListUserPosts(ctx context.Context, q domain.FeedQuery) ([]domain.PostRow, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, vport_id, title, text, media_url, media_type, created_at
FROM posts
WHERE visibility = 'public' AND deleted = false
  AND ($2 OR media_type IS NULL OR media_type <> 'video')
ORDER BY created_at DESC
LIMIT $1
`, q.Take, q.IncludeVideos)
	metrics.ObserveNetworkRequest("postgres", "posts_list_newest", "posts", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка личных постов: %w", err)
	}
	defer rows.Close()

	var out []domain.PostRow
	for rows.Next() {
		var (
			row       domain.PostRow
			vportID   sql.NullInt64
			title     sql.NullString
			text      sql.NullString
			mediaURL  sql.NullString
			mediaType sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.UserID, &vportID, &title, &text, &mediaURL, &mediaType, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение строки поста: %w", err)
		}
		if vportID.Valid {
			id := vportID.Int64
			row.VportID = &id
		}
		row.Title = title.String
		row.Text = text.String
		row.MediaURL = mediaURL.String
		if mediaType.Valid {
			mt := mediaType.String
			row.MediaType = &mt
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("выборка личных постов: %w", err)
	}
	return out, nil
}

// ListVportPosts возвращает новейшие посты бизнес-страниц.
func (p *Postgres) ListVportPosts(ctx context.Context, q domain.FeedQuery) ([]domain.VportPostRow, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, vport_id, title, text, media_url, media_type, created_at
FROM vport_posts
WHERE visibility = 'public' AND deleted = false
  AND ($2 OR media_type IS NULL OR media_type <> 'video')
ORDER BY created_at DESC
LIMIT $1
`, q.Take, q.IncludeVideos)
	metrics.ObserveNetworkRequest("postgres", "vport_posts_list_newest", "vport_posts", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка постов бизнес-страниц: %w", err)
	}
	defer rows.Close()

	var out []domain.VportPostRow
	for rows.Next() {
		var (
			row       domain.VportPostRow
			title     sql.NullString
			text      sql.NullString
			mediaURL  sql.NullString
			mediaType sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.VportID, &title, &text, &mediaURL, &mediaType, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("чтение строки поста бизнес-страницы: %w", err)
		}
		row.Title = title.String
		row.Text = text.String
		row.MediaURL = mediaURL.String
		if mediaType.Valid {
			mt := mediaType.String
			row.MediaType = &mt
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("выборка постов бизнес-страниц: %w", err)
	}
	return out, nil
}

// GetUserAuthors возвращает карточки пользователей по списку ID.
func (p *Postgres) GetUserAuthors(ctx context.Context, ids []int64) ([]domain.UserAuthor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, display_name, username, photo_url, is_adult
FROM users
WHERE id = ANY($1)
`, ids)
	metrics.ObserveNetworkRequest("postgres", "users_get_by_ids", "users", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка авторов-пользователей: %w", err)
	}
	defer rows.Close()

	var out []domain.UserAuthor
	for rows.Next() {
		var (
			author      domain.UserAuthor
			displayName sql.NullString
			username    sql.NullString
			photoURL    sql.NullString
		)
		if err := rows.Scan(&author.ID, &displayName, &username, &photoURL, &author.IsAdult); err != nil {
			return nil, fmt.Errorf("чтение карточки пользователя: %w", err)
		}
		author.DisplayName = displayName.String
		author.Username = username.String
		author.PhotoURL = photoURL.String
		out = append(out, author)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("выборка авторов-пользователей: %w", err)
	}
	return out, nil
}

// GetVportAuthors возвращает карточки бизнес-страниц по списку ID.
func (p *Postgres) GetVportAuthors(ctx context.Context, ids []int64) ([]domain.VportAuthor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, name, avatar_url, type, verified
FROM vports
WHERE id = ANY($1)
`, ids)
	metrics.ObserveNetworkRequest("postgres", "vports_get_by_ids", "vports", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка бизнес-страниц: %w", err)
	}
	defer rows.Close()

	var out []domain.VportAuthor
	for rows.Next() {
		var (
			author    domain.VportAuthor
			name      sql.NullString
			avatarURL sql.NullString
			vportType sql.NullString
		)
		if err := rows.Scan(&author.ID, &name, &avatarURL, &vportType, &author.Verified); err != nil {
			return nil, fmt.Errorf("чтение карточки бизнес-страницы: %w", err)
		}
		author.Name = name.String
		author.AvatarURL = avatarURL.String
		author.Type = vportType.String
		out = append(out, author)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("выборка бизнес-страниц: %w", err)
	}
	return out, nil
}
