package feed

import (
	"context"
	"errors"
	"sync"

	"vport-feed/internal/domain"
)

// ErrFetchInProgress возвращается, если загрузка следующей страницы
// запрошена, пока предыдущая ещё выполняется.
var ErrFetchInProgress = errors.New("загрузка страницы уже выполняется")

// Session — одна непрерывная сессия пролистывания ленты: владеет счётчиком
// страниц, накопленными элементами и кэшами авторов. Одновременно
// допускается только одна загрузка страницы: счётчик страниц монотонный,
// и параллельные запросы ломали бы дедупликацию и hasMore.
type Session struct {
	svc           domain.FeedService
	pageSize      int
	includeVideos bool

	mu           sync.Mutex
	busy         bool
	page         int
	hasMore      bool
	items        []domain.FeedItem
	userAuthors  domain.UserAuthorCache
	vportAuthors domain.VportAuthorCache
}

// NewSession создаёт сессию с пустыми кэшами и страницей 0.
func NewSession(svc domain.FeedService, pageSize int, includeVideos bool) *Session {
	return &Session{
		svc:           svc,
		pageSize:      pageSize,
		includeVideos: includeVideos,
		hasMore:       true,
		userAuthors:   domain.UserAuthorCache{},
		vportAuthors:  domain.VportAuthorCache{},
	}
}

// LoadNext загружает следующую страницу. Пока загрузка выполняется,
// повторный вызов отклоняется с ErrFetchInProgress. При ошибке состояние
// сессии не меняется и страница не продвигается — вызов можно повторить.
func (s *Session) LoadNext(ctx context.Context) (domain.FeedPage, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return domain.FeedPage{}, ErrFetchInProgress
	}
	s.busy = true
	params := domain.FeedPageParams{
		Page:          s.page,
		PageSize:      s.pageSize,
		IncludeVideos: s.includeVideos,
		UserAuthors:   s.userAuthors,
		VportAuthors:  s.vportAuthors,
	}
	s.mu.Unlock()

	page, err := s.svc.FetchPage(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return domain.FeedPage{}, err
	}
	s.page++
	s.items = append(s.items, page.Items...)
	s.userAuthors = page.UserAuthors
	s.vportAuthors = page.VportAuthors
	s.hasMore = page.HasMore
	return page, nil
}

// Refresh сбрасывает сессию к первой странице. Кэши авторов сохраняются:
// карточки авторов неизменяемы в пределах сессии, повторная загрузка
// известных авторов не нужна.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = 0
	s.items = nil
	s.hasMore = true
}

// Items возвращает копию накопленных элементов.
func (s *Session) Items() []domain.FeedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FeedItem, len(s.items))
	copy(out, s.items)
	return out
}

// Page возвращает номер следующей незагруженной страницы.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// HasMore сообщает, ожидаются ли ещё страницы.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// PageSize возвращает размер страницы сессии.
func (s *Session) PageSize() int {
	return s.pageSize
}
