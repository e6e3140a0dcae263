package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vport-feed/internal/domain"
)

var feedBase = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// at переводит условную отметку времени в time.Time.
func at(sec float64) time.Time {
	return feedBase.Add(time.Duration(sec * float64(time.Second)))
}

type stubStore struct {
	mu sync.Mutex

	posts      []domain.PostRow
	vportPosts []domain.VportPostRow
	postsErr   error
	vportErr   error

	userAuthors     map[int64]domain.UserAuthor
	vportAuthors    map[int64]domain.VportAuthor
	userAuthorsErr  error
	vportAuthorsErr error

	queries      []domain.FeedQuery
	userLookups  [][]int64
	vportLookups [][]int64
}

func (s *stubStore) ListUserPosts(_ context.Context, q domain.FeedQuery) ([]domain.PostRow, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.postsErr != nil {
		return nil, s.postsErr
	}
	var out []domain.PostRow
	for _, row := range s.posts {
		if !q.IncludeVideos && row.MediaType != nil && *row.MediaType == domain.MediaTypeVideo {
			continue
		}
		out = append(out, row)
		if len(out) == q.Take {
			break
		}
	}
	return out, nil
}

func (s *stubStore) ListVportPosts(_ context.Context, q domain.FeedQuery) ([]domain.VportPostRow, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if s.vportErr != nil {
		return nil, s.vportErr
	}
	var out []domain.VportPostRow
	for _, row := range s.vportPosts {
		if !q.IncludeVideos && row.MediaType != nil && *row.MediaType == domain.MediaTypeVideo {
			continue
		}
		out = append(out, row)
		if len(out) == q.Take {
			break
		}
	}
	return out, nil
}

func (s *stubStore) GetUserAuthors(_ context.Context, ids []int64) ([]domain.UserAuthor, error) {
	s.mu.Lock()
	s.userLookups = append(s.userLookups, ids)
	s.mu.Unlock()
	if s.userAuthorsErr != nil {
		return nil, s.userAuthorsErr
	}
	var out []domain.UserAuthor
	for _, id := range ids {
		if author, ok := s.userAuthors[id]; ok {
			out = append(out, author)
		}
	}
	return out, nil
}

func (s *stubStore) GetVportAuthors(_ context.Context, ids []int64) ([]domain.VportAuthor, error) {
	s.mu.Lock()
	s.vportLookups = append(s.vportLookups, ids)
	s.mu.Unlock()
	if s.vportAuthorsErr != nil {
		return nil, s.vportAuthorsErr
	}
	var out []domain.VportAuthor
	for _, id := range ids {
		if author, ok := s.vportAuthors[id]; ok {
			out = append(out, author)
		}
	}
	return out, nil
}

// scenarioStore возвращает перемежающиеся семейства:
// posts на t=10, 9, 8 и vport_posts на t=9.5, 7.
func scenarioStore() *stubStore {
	return &stubStore{
		posts: []domain.PostRow{
			{ID: 1, UserID: 100, CreatedAt: at(10)},
			{ID: 2, UserID: 101, CreatedAt: at(9)},
			{ID: 3, UserID: 100, CreatedAt: at(8)},
		},
		vportPosts: []domain.VportPostRow{
			{ID: 1, VportID: 200, CreatedAt: at(9.5)},
			{ID: 2, VportID: 201, CreatedAt: at(7)},
		},
		userAuthors: map[int64]domain.UserAuthor{
			100: {ID: 100, DisplayName: "Анна", Username: "anna"},
			101: {ID: 101, DisplayName: "Борис", Username: "boris"},
		},
		vportAuthors: map[int64]domain.VportAuthor{
			200: {ID: 200, Name: "Кофейня", Type: "cafe", Verified: true},
			201: {ID: 201, Name: "Автосервис"},
		},
	}
}

func emptyParams(page, pageSize int) domain.FeedPageParams {
	return domain.FeedPageParams{
		Page:         page,
		PageSize:     pageSize,
		UserAuthors:  domain.UserAuthorCache{},
		VportAuthors: domain.VportAuthorCache{},
	}
}

func TestFetchPageFirstPage(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	page, err := service.FetchPage(context.Background(), emptyParams(0, 2))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("ожидали 2 элемента, получили %d", len(page.Items))
	}
	if page.Items[0].Source != domain.SourcePosts || !page.Items[0].CreatedAt.Equal(at(10)) {
		t.Fatalf("первым должен быть личный пост t=10")
	}
	if page.Items[1].Source != domain.SourceVportPosts || !page.Items[1].CreatedAt.Equal(at(9.5)) {
		t.Fatalf("вторым должен быть пост бизнес-страницы t=9.5")
	}
	if !page.HasMore {
		t.Fatalf("ожидали hasMore=true")
	}
	if _, ok := page.UserAuthors[100]; !ok {
		t.Fatalf("ожидали гидратированного автора-пользователя 100")
	}
	if _, ok := page.VportAuthors[200]; !ok {
		t.Fatalf("ожидали гидратированную бизнес-страницу 200")
	}
}

func TestFetchPageSecondPage(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	page, err := service.FetchPage(context.Background(), emptyParams(1, 2))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("ожидали 2 элемента, получили %d", len(page.Items))
	}
	if !page.Items[0].CreatedAt.Equal(at(9)) || page.Items[0].Source != domain.SourcePosts {
		t.Fatalf("первым на второй странице должен быть личный пост t=9")
	}
	if !page.Items[1].CreatedAt.Equal(at(8)) || page.Items[1].Source != domain.SourcePosts {
		t.Fatalf("вторым на второй странице должен быть личный пост t=8")
	}
	if !page.HasMore {
		t.Fatalf("ожидали hasMore=true: остаётся элемент t=7")
	}
}

func TestFetchPageLastPage(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	page, err := service.FetchPage(context.Background(), emptyParams(2, 2))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 1 || !page.Items[0].CreatedAt.Equal(at(7)) {
		t.Fatalf("последняя страница должна содержать только t=7")
	}
	if page.HasMore {
		t.Fatalf("ожидали hasMore=false на последней странице")
	}
}

func TestFetchPageBeyondEnd(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	page, err := service.FetchPage(context.Background(), emptyParams(5, 2))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("за концом данных страница должна быть пустой")
	}
	if page.HasMore {
		t.Fatalf("ожидали hasMore=false за концом данных")
	}
}

func TestOverfetchTake(t *testing.T) {
	cases := []struct {
		page, pageSize, want int
	}{
		{0, 10, 40},
		{1, 10, 40},
		{2, 10, 60},
		{4, 10, 100},
		{0, 2, 8},
	}
	for _, c := range cases {
		if got := overfetchTake(c.page, c.pageSize); got != c.want {
			t.Fatalf("overfetchTake(%d, %d): ожидали %d, получили %d", c.page, c.pageSize, c.want, got)
		}
	}
}

func TestFetchPagePassesTakeToBothFamilies(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	if _, err := service.FetchPage(context.Background(), emptyParams(0, 2)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.queries) != 2 {
		t.Fatalf("ожидали запросы к обоим семействам, получили %d", len(store.queries))
	}
	for _, q := range store.queries {
		if q.Take != 8 {
			t.Fatalf("ожидали take=8, получили %d", q.Take)
		}
		if q.IncludeVideos {
			t.Fatalf("includeVideos должен быть false по умолчанию")
		}
	}
}

func TestVideoFilterIsNullSafe(t *testing.T) {
	video := domain.MediaTypeVideo
	store := &stubStore{
		posts: []domain.PostRow{
			{ID: 1, UserID: 1, CreatedAt: at(10)},
			{ID: 2, UserID: 1, MediaType: &video, CreatedAt: at(9)},
		},
		vportPosts: []domain.VportPostRow{
			{ID: 3, VportID: 2, MediaType: &video, CreatedAt: at(8)},
		},
		userAuthors:  map[int64]domain.UserAuthor{1: {ID: 1}},
		vportAuthors: map[int64]domain.VportAuthor{2: {ID: 2}},
	}
	service := NewService(store, store)

	page, err := service.FetchPage(context.Background(), emptyParams(0, 10))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("ожидали 1 элемент без видео, получили %d", len(page.Items))
	}
	if page.Items[0].ID != 1 {
		t.Fatalf("запись без типа медиа должна остаться в выдаче")
	}
	if page.Items[0].MediaType != domain.MediaTypeDefault {
		t.Fatalf("тип медиа по умолчанию должен быть %q", domain.MediaTypeDefault)
	}

	params := emptyParams(0, 10)
	params.IncludeVideos = true
	page, err = service.FetchPage(context.Background(), params)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("с includeVideos=true ожидали 3 элемента, получили %d", len(page.Items))
	}
}

func TestNoDuplicateIdentityAcrossFamilies(t *testing.T) {
	// Сырые ID совпадают в обоих семействах: идентичность — пара (source, id).
	store := &stubStore{
		posts: []domain.PostRow{
			{ID: 5, UserID: 1, CreatedAt: at(10)},
		},
		vportPosts: []domain.VportPostRow{
			{ID: 5, VportID: 2, CreatedAt: at(9)},
		},
		userAuthors:  map[int64]domain.UserAuthor{1: {ID: 1}},
		vportAuthors: map[int64]domain.VportAuthor{2: {ID: 2}},
	}
	service := NewService(store, store)

	page, err := service.FetchPage(context.Background(), emptyParams(0, 10))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("оба элемента с совпадающими сырыми ID должны попасть в выдачу")
	}
	seen := map[domain.FeedItemKey]struct{}{}
	for _, item := range page.Items {
		key := item.Key()
		if _, ok := seen[key]; ok {
			t.Fatalf("дубликат составного ключа %v", key)
		}
		seen[key] = struct{}{}
	}
}

func TestItemsSortedDescending(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	page, err := service.FetchPage(context.Background(), emptyParams(0, 10))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for i := 0; i+1 < len(page.Items); i++ {
		if page.Items[i].CreatedAt.Before(page.Items[i+1].CreatedAt) {
			t.Fatalf("нарушен порядок убывания на позиции %d", i)
		}
	}
}

func TestHydrationSkipsKnownAuthors(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	first, err := service.FetchPage(context.Background(), emptyParams(0, 2))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	params := emptyParams(1, 2)
	params.UserAuthors = first.UserAuthors
	params.VportAuthors = first.VportAuthors
	lookupsBefore := len(store.userLookups)
	if _, err := service.FetchPage(context.Background(), params); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	// Вторая страница: посты t=9 (автор 101) и t=8 (автор 100).
	// Автор 100 уже в кэше после первой страницы — запрашивается только 101.
	for _, lookup := range store.userLookups[lookupsBefore:] {
		for _, id := range lookup {
			if id == 100 {
				t.Fatalf("автор 100 уже в кэше и не должен запрашиваться повторно")
			}
		}
	}
}

func TestHydrationSkipsLookupWhenAllCached(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	first, err := service.FetchPage(context.Background(), emptyParams(0, 10))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	params := emptyParams(0, 10)
	params.UserAuthors = first.UserAuthors
	params.VportAuthors = first.VportAuthors
	userLookups := len(store.userLookups)
	vportLookups := len(store.vportLookups)
	if _, err := service.FetchPage(context.Background(), params); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.userLookups) != userLookups || len(store.vportLookups) != vportLookups {
		t.Fatalf("при полностью прогретом кэше выборки авторов не должны выполняться")
	}
}

func TestHydrationDeduplicatesIDs(t *testing.T) {
	store := &stubStore{
		posts: []domain.PostRow{
			{ID: 1, UserID: 100, CreatedAt: at(10)},
			{ID: 2, UserID: 100, CreatedAt: at(9)},
			{ID: 3, UserID: 100, CreatedAt: at(8)},
		},
		userAuthors: map[int64]domain.UserAuthor{100: {ID: 100}},
	}
	service := NewService(store, store)

	if _, err := service.FetchPage(context.Background(), emptyParams(0, 10)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.userLookups) != 1 {
		t.Fatalf("ожидали одну пакетную выборку, получили %d", len(store.userLookups))
	}
	if len(store.userLookups[0]) != 1 {
		t.Fatalf("ID авторов должны дедуплицироваться, получили %v", store.userLookups[0])
	}
}

func TestCacheMonotonicityAndNoOverwrite(t *testing.T) {
	store := scenarioStore()
	// В хранилище другое имя: закэшированная карточка не должна перезаписаться.
	store.userAuthors[100] = domain.UserAuthor{ID: 100, DisplayName: "новое имя"}
	service := NewService(store, store)

	cached := domain.UserAuthor{ID: 100, DisplayName: "старое имя"}
	params := emptyParams(0, 10)
	params.UserAuthors = domain.UserAuthorCache{100: cached}

	page, err := service.FetchPage(context.Background(), params)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := page.UserAuthors[100]; got != cached {
		t.Fatalf("закэшированная карточка перезаписана: %+v", got)
	}
	for id := range params.UserAuthors {
		if _, ok := page.UserAuthors[id]; !ok {
			t.Fatalf("выходной кэш должен включать все ключи входного")
		}
	}
	if len(params.UserAuthors) != 1 {
		t.Fatalf("входной кэш не должен изменяться")
	}
}

func TestSourceReadFailureAbortsPage(t *testing.T) {
	store := scenarioStore()
	store.postsErr = errors.New("стор недоступен")
	service := NewService(store, store)

	if _, err := service.FetchPage(context.Background(), emptyParams(0, 2)); err == nil {
		t.Fatalf("ошибка чтения семейства должна отменять страницу")
	}

	store = scenarioStore()
	store.vportErr = errors.New("стор недоступен")
	service = NewService(store, store)
	if _, err := service.FetchPage(context.Background(), emptyParams(0, 2)); err == nil {
		t.Fatalf("ошибка чтения второго семейства должна отменять страницу")
	}
}

func TestHydrationFailureAbortsPage(t *testing.T) {
	store := scenarioStore()
	store.vportAuthorsErr = errors.New("стор недоступен")
	service := NewService(store, store)

	if _, err := service.FetchPage(context.Background(), emptyParams(0, 2)); err == nil {
		t.Fatalf("ошибка гидратации должна отменять страницу")
	}
}

func TestFetchPageValidatesParams(t *testing.T) {
	store := scenarioStore()
	service := NewService(store, store)

	if _, err := service.FetchPage(context.Background(), emptyParams(-1, 2)); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("ожидали ErrInvalidPage, получили %v", err)
	}
	if _, err := service.FetchPage(context.Background(), emptyParams(0, 0)); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("ожидали ErrInvalidPageSize, получили %v", err)
	}
}
