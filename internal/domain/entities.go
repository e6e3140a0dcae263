package domain

import "time"

// FeedSource обозначает семейство записей, из которого пришёл элемент ленты.
type FeedSource string

const (
	// SourcePosts — личные посты пользователей.
	SourcePosts FeedSource = "posts"
	// SourceVportPosts — посты бизнес-страниц (vport).
	SourceVportPosts FeedSource = "vport_posts"
)

// AuthorKind обозначает тип автора элемента ленты.
type AuthorKind string

const (
	AuthorKindUser  AuthorKind = "user"
	AuthorKindVport AuthorKind = "vport"
)

// MediaTypeVideo — единственный тип медиа, который исключается фильтром.
const MediaTypeVideo = "video"

// MediaTypeDefault подставляется, если у записи не указан тип медиа.
const MediaTypeDefault = "text"

// FeedItem — нормализованный элемент объединённой ленты.
// Сырые ID уникальны только внутри своего семейства, поэтому
// идентичность элемента определяется парой (Source, ID).
type FeedItem struct {
	ID         int64
	Source     FeedSource
	AuthorKind AuthorKind
	AuthorID   int64
	CreatedAt  time.Time
	Title      string
	Text       string
	MediaURL   string
	MediaType  string
}

// FeedItemKey — составной ключ элемента ленты для дедупликации.
type FeedItemKey struct {
	Source FeedSource
	ID     int64
}

// Key возвращает составной ключ элемента.
func (i FeedItem) Key() FeedItemKey {
	return FeedItemKey{Source: i.Source, ID: i.ID}
}

// PostRow — сырая запись семейства личных постов.
// VportID заполнен, если пост является кросс-постом бизнес-страницы.
type PostRow struct {
	ID        int64
	UserID    int64
	VportID   *int64
	Title     string
	Text      string
	MediaURL  string
	MediaType *string
	CreatedAt time.Time
}

// VportPostRow — сырая запись семейства постов бизнес-страниц.
type VportPostRow struct {
	ID        int64
	VportID   int64
	Title     string
	Text      string
	MediaURL  string
	MediaType *string
	CreatedAt time.Time
}

// UserAuthor — карточка автора-пользователя.
type UserAuthor struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	PhotoURL    string `json:"photo_url"`
	IsAdult     bool   `json:"is_adult"`
}

// VportAuthor — карточка автора-бизнес-страницы.
type VportAuthor struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
	Verified  bool   `json:"verified"`
}

// UserAuthorCache хранит уже загруженных авторов-пользователей сессии.
// Записи не вытесняются и не перезаписываются до конца сессии.
type UserAuthorCache map[int64]UserAuthor

// VportAuthorCache хранит уже загруженных авторов-бизнес-страниц сессии.
type VportAuthorCache map[int64]VportAuthor

// FeedQuery — параметры чтения одного семейства записей.
type FeedQuery struct {
	Take          int
	IncludeVideos bool
}

// FeedPageParams — параметры запроса одной страницы объединённой ленты.
// Кэши принадлежат вызывающей стороне и передаются по значению:
// сервис возвращает обновлённые копии, не трогая оригиналы.
type FeedPageParams struct {
	Page          int
	PageSize      int
	IncludeVideos bool
	UserAuthors   UserAuthorCache
	VportAuthors  VportAuthorCache
}

// FeedPage — результат запроса страницы: элементы, признак наличия
// следующей страницы и обновлённые кэши авторов.
type FeedPage struct {
	Items        []FeedItem
	HasMore      bool
	UserAuthors  UserAuthorCache
	VportAuthors VportAuthorCache
}

// События ленты для шины событий.
const (
	FeedEventSessionStarted   = "session_started"
	FeedEventPageServed       = "page_served"
	FeedEventSessionRefreshed = "session_refreshed"
)

// FeedEvent — бизнес-событие обслуживания ленты.
type FeedEvent struct {
	Event      string    `json:"event"`
	SessionID  string    `json:"session_id,omitempty"`
	Page       int       `json:"page"`
	ItemCount  int       `json:"item_count"`
	OccurredAt time.Time `json:"occurred_at"`
}
