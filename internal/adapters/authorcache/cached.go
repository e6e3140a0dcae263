package authorcache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"vport-feed/internal/domain"
	"vport-feed/internal/infra/metrics"
)

// CachedAuthorRepo оборачивает AuthorRepo общим TTL-кэшем карточек авторов.
// Кэш живёт на уровне адаптера хранилища и делится между сессиями:
// карточки авторов неизменяемы, устаревание допустимо. Сессионные кэши
// гидратации он не подменяет и не видит.
//
// Любая ошибка кэша трактуется как промах: гидратация не должна падать
// из-за недоступного Redis.
type CachedAuthorRepo struct {
	inner domain.AuthorRepo
	cache domain.Cache
	ttl   time.Duration
}

var _ domain.AuthorRepo = (*CachedAuthorRepo)(nil)

// New создаёт кэширующий декоратор над репозиторием авторов.
func New(inner domain.AuthorRepo, cache domain.Cache, ttl time.Duration) *CachedAuthorRepo {
	return &CachedAuthorRepo{inner: inner, cache: cache, ttl: ttl}
}

func userKey(id int64) string {
	return "author:user:" + strconv.FormatInt(id, 10)
}

func vportKey(id int64) string {
	return "author:vport:" + strconv.FormatInt(id, 10)
}

// GetUserAuthors возвращает карточки пользователей, беря известные из кэша
// и дозапрашивая остальные у внутреннего репозитория.
func (c *CachedAuthorRepo) GetUserAuthors(ctx context.Context, ids []int64) ([]domain.UserAuthor, error) {
	var out []domain.UserAuthor
	var missing []int64
	for _, id := range ids {
		data, err := c.cache.Get(ctx, userKey(id))
		if err != nil {
			metrics.IncAuthorCacheLookup(string(domain.AuthorKindUser), false)
			missing = append(missing, id)
			continue
		}
		var author domain.UserAuthor
		if err := json.Unmarshal(data, &author); err != nil {
			metrics.IncAuthorCacheLookup(string(domain.AuthorKindUser), false)
			missing = append(missing, id)
			continue
		}
		metrics.IncAuthorCacheLookup(string(domain.AuthorKindUser), true)
		out = append(out, author)
	}
	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := c.inner.GetUserAuthors(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, author := range fetched {
		if data, err := json.Marshal(author); err == nil {
			_ = c.cache.Set(ctx, userKey(author.ID), data, c.ttl)
		}
	}
	return append(out, fetched...), nil
}

// GetVportAuthors возвращает карточки бизнес-страниц по той же схеме.
func (c *CachedAuthorRepo) GetVportAuthors(ctx context.Context, ids []int64) ([]domain.VportAuthor, error) {
	var out []domain.VportAuthor
	var missing []int64
	for _, id := range ids {
		data, err := c.cache.Get(ctx, vportKey(id))
		if err != nil {
			metrics.IncAuthorCacheLookup(string(domain.AuthorKindVport), false)
			missing = append(missing, id)
			continue
		}
		var author domain.VportAuthor
		if err := json.Unmarshal(data, &author); err != nil {
			metrics.IncAuthorCacheLookup(string(domain.AuthorKindVport), false)
			missing = append(missing, id)
			continue
		}
		metrics.IncAuthorCacheLookup(string(domain.AuthorKindVport), true)
		out = append(out, author)
	}
	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := c.inner.GetVportAuthors(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, author := range fetched {
		if data, err := json.Marshal(author); err == nil {
			_ = c.cache.Set(ctx, vportKey(author.ID), data, c.ttl)
		}
	}
	return append(out, fetched...), nil
}
