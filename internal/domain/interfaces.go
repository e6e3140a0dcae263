package domain

import (
	"context"
	"time"
)

// PostRepo читает семейства записей ленты.
// Оба метода возвращают записи в порядке убывания created_at,
// не более q.Take штук. При q.IncludeVideos=false исключаются только
// записи, явно помеченные типом "video": запись без типа медиа остаётся.
type PostRepo interface {
	ListUserPosts(ctx context.Context, q FeedQuery) ([]PostRow, error)
	ListVportPosts(ctx context.Context, q FeedQuery) ([]VportPostRow, error)
}

// AuthorRepo выполняет пакетные выборки карточек авторов по списку ID.
// Порядок результата не гарантируется; отсутствующие ID просто опускаются.
type AuthorRepo interface {
	GetUserAuthors(ctx context.Context, ids []int64) ([]UserAuthor, error)
	GetVportAuthors(ctx context.Context, ids []int64) ([]VportAuthor, error)
}

// FeedService строит одну страницу объединённой ленты.
type FeedService interface {
	FetchPage(ctx context.Context, params FeedPageParams) (FeedPage, error)
}

// Cache используется для простых байтовых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// EventPublisher публикует бизнес-события ленты.
type EventPublisher interface {
	Publish(ctx context.Context, event FeedEvent) error
}
