package feed

import "vport-feed/internal/domain"

// normalizeUserPost приводит запись семейства личных постов к FeedItem.
// Пост с заполненной ссылкой на бизнес-страницу атрибутируется ей
// (кросс-пост), иначе — собственному пользователю записи.
func normalizeUserPost(row domain.PostRow) domain.FeedItem {
	item := domain.FeedItem{
		ID:        row.ID,
		Source:    domain.SourcePosts,
		CreatedAt: row.CreatedAt,
		Title:     row.Title,
		Text:      row.Text,
		MediaURL:  row.MediaURL,
		MediaType: normalizeMediaType(row.MediaType),
	}
	if row.VportID != nil {
		item.AuthorKind = domain.AuthorKindVport
		item.AuthorID = *row.VportID
	} else {
		item.AuthorKind = domain.AuthorKindUser
		item.AuthorID = row.UserID
	}
	return item
}

// normalizeVportPost приводит запись семейства постов бизнес-страниц к FeedItem.
func normalizeVportPost(row domain.VportPostRow) domain.FeedItem {
	return domain.FeedItem{
		ID:         row.ID,
		Source:     domain.SourceVportPosts,
		AuthorKind: domain.AuthorKindVport,
		AuthorID:   row.VportID,
		CreatedAt:  row.CreatedAt,
		Title:      row.Title,
		Text:       row.Text,
		MediaURL:   row.MediaURL,
		MediaType:  normalizeMediaType(row.MediaType),
	}
}

func normalizeMediaType(mediaType *string) string {
	if mediaType == nil || *mediaType == "" {
		return domain.MediaTypeDefault
	}
	return *mediaType
}
