package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vport-feed/internal/domain"
	"vport-feed/internal/infra/metrics"
)

// ErrInvalidPage возвращается при отрицательном номере страницы.
var ErrInvalidPage = errors.New("номер страницы не может быть отрицательным")

// ErrInvalidPageSize возвращается при неположительном размере страницы.
var ErrInvalidPageSize = errors.New("размер страницы должен быть положительным")

// Service строит страницы объединённой ленты из двух семейств записей.
//
// Пагинация смещением по живым таблицам даёт известное приближение:
// вставка или удаление записи между запросами соседних страниц может
// сдвинуть элемент через границу страницы. Это принятое ограничение,
// сервис его не компенсирует.
type Service struct {
	posts   domain.PostRepo
	authors domain.AuthorRepo
}

var _ domain.FeedService = (*Service)(nil)

// NewService создаёт сервис ленты.
func NewService(posts domain.PostRepo, authors domain.AuthorRepo) *Service {
	return &Service{posts: posts, authors: authors}
}

// overfetchTake считает лимит выборки для каждого семейства.
// Запас нужен, чтобы окно [0, (page+1)*pageSize) было полностью покрыто
// даже когда все свежие записи приходят из одного семейства.
// Множитель — эвристика, на очень глубоких страницах с сильным перекосом
// семейств он может недобрать; подбирается, а не доказан.
func overfetchTake(page, pageSize int) int {
	take := pageSize * 4
	if deep := (page + 1) * pageSize * 2; deep > take {
		take = deep
	}
	return take
}

// FetchPage собирает страницу ленты: параллельно читает оба семейства,
// нормализует, сливает по убыванию created_at, вырезает страницу и
// догружает недостающие карточки авторов. Любая ошибка чтения отменяет
// страницу целиком, частичные результаты не возвращаются.
func (s *Service) FetchPage(ctx context.Context, params domain.FeedPageParams) (domain.FeedPage, error) {
	if params.Page < 0 {
		return domain.FeedPage{}, ErrInvalidPage
	}
	if params.PageSize <= 0 {
		return domain.FeedPage{}, ErrInvalidPageSize
	}

	buildStart := time.Now()
	page, err := s.buildPage(ctx, params)
	metrics.ObserveFeedPage(buildStart, len(page.Items), err)
	return page, err
}

func (s *Service) buildPage(ctx context.Context, params domain.FeedPageParams) (domain.FeedPage, error) {
	query := domain.FeedQuery{
		Take:          overfetchTake(params.Page, params.PageSize),
		IncludeVideos: params.IncludeVideos,
	}

	var (
		wg        sync.WaitGroup
		userRows  []domain.PostRow
		vportRows []domain.VportPostRow
		userErr   error
		vportErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		userRows, userErr = s.posts.ListUserPosts(ctx, query)
	}()
	go func() {
		defer wg.Done()
		vportRows, vportErr = s.posts.ListVportPosts(ctx, query)
	}()
	wg.Wait()
	if userErr != nil {
		metrics.IncFetchError("read_posts")
		return domain.FeedPage{}, fmt.Errorf("чтение личных постов: %w", userErr)
	}
	if vportErr != nil {
		metrics.IncFetchError("read_vport_posts")
		return domain.FeedPage{}, fmt.Errorf("чтение постов бизнес-страниц: %w", vportErr)
	}

	// Семейство личных постов идёт первым: при равном created_at
	// стабильная сортировка сохраняет порядок конкатенации.
	combined := make([]domain.FeedItem, 0, len(userRows)+len(vportRows))
	for _, row := range userRows {
		combined = append(combined, normalizeUserPost(row))
	}
	for _, row := range vportRows {
		combined = append(combined, normalizeVportPost(row))
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].CreatedAt.After(combined[j].CreatedAt)
	})

	from := params.Page * params.PageSize
	to := from + params.PageSize
	var items []domain.FeedItem
	switch {
	case from >= len(combined):
		items = []domain.FeedItem{}
	case to > len(combined):
		items = combined[from:]
	default:
		items = combined[from:to]
	}
	hasMore := len(combined) > (params.Page+1)*params.PageSize

	userAuthors, vportAuthors, err := s.hydrate(ctx, items, params.UserAuthors, params.VportAuthors)
	if err != nil {
		metrics.IncFetchError("hydrate")
		return domain.FeedPage{}, err
	}

	return domain.FeedPage{
		Items:        items,
		HasMore:      hasMore,
		UserAuthors:  userAuthors,
		VportAuthors: vportAuthors,
	}, nil
}

// hydrate догружает карточки авторов, которых ещё нет во входных кэшах,
// двумя параллельными пакетными выборками. Возвращаемые кэши — объединение
// входных и свежих записей; входные карты не изменяются, уже известные
// авторы не перезапрашиваются и не перезаписываются.
func (s *Service) hydrate(ctx context.Context, items []domain.FeedItem, users domain.UserAuthorCache, vports domain.VportAuthorCache) (domain.UserAuthorCache, domain.VportAuthorCache, error) {
	outUsers := make(domain.UserAuthorCache, len(users))
	for id, author := range users {
		outUsers[id] = author
	}
	outVports := make(domain.VportAuthorCache, len(vports))
	for id, author := range vports {
		outVports[id] = author
	}

	var missingUsers, missingVports []int64
	seenUsers := make(map[int64]struct{})
	seenVports := make(map[int64]struct{})
	for _, item := range items {
		switch item.AuthorKind {
		case domain.AuthorKindUser:
			if _, ok := outUsers[item.AuthorID]; ok {
				continue
			}
			if _, ok := seenUsers[item.AuthorID]; ok {
				continue
			}
			seenUsers[item.AuthorID] = struct{}{}
			missingUsers = append(missingUsers, item.AuthorID)
		case domain.AuthorKindVport:
			if _, ok := outVports[item.AuthorID]; ok {
				continue
			}
			if _, ok := seenVports[item.AuthorID]; ok {
				continue
			}
			seenVports[item.AuthorID] = struct{}{}
			missingVports = append(missingVports, item.AuthorID)
		}
	}

	var (
		wg           sync.WaitGroup
		fetchedUsers []domain.UserAuthor
		fetchedVport []domain.VportAuthor
		userErr      error
		vportErr     error
	)
	if len(missingUsers) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchedUsers, userErr = s.authors.GetUserAuthors(ctx, missingUsers)
		}()
	}
	if len(missingVports) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchedVport, vportErr = s.authors.GetVportAuthors(ctx, missingVports)
		}()
	}
	wg.Wait()
	if userErr != nil {
		return nil, nil, fmt.Errorf("загрузка авторов-пользователей: %w", userErr)
	}
	if vportErr != nil {
		return nil, nil, fmt.Errorf("загрузка бизнес-страниц: %w", vportErr)
	}

	for _, author := range fetchedUsers {
		if _, ok := outUsers[author.ID]; ok {
			continue
		}
		outUsers[author.ID] = author
	}
	for _, author := range fetchedVport {
		if _, ok := outVports[author.ID]; ok {
			continue
		}
		outVports[author.ID] = author
	}
	metrics.AddHydratedAuthors(string(domain.AuthorKindUser), len(fetchedUsers))
	metrics.AddHydratedAuthors(string(domain.AuthorKindVport), len(fetchedVport))

	return outUsers, outVports, nil
}
