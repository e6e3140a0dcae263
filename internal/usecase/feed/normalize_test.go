package feed

import (
	"testing"
	"time"

	"vport-feed/internal/domain"
)

func TestNormalizeUserPostNative(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := normalizeUserPost(domain.PostRow{
		ID:        10,
		UserID:    7,
		Title:     "заголовок",
		Text:      "текст",
		CreatedAt: created,
	})
	if item.Source != domain.SourcePosts {
		t.Fatalf("ожидали источник posts, получили %s", item.Source)
	}
	if item.AuthorKind != domain.AuthorKindUser {
		t.Fatalf("ожидали автора-пользователя, получили %s", item.AuthorKind)
	}
	if item.AuthorID != 7 {
		t.Fatalf("ожидали автора 7, получили %d", item.AuthorID)
	}
	if !item.CreatedAt.Equal(created) {
		t.Fatalf("время создания не должно меняться")
	}
}

func TestNormalizeUserPostCrossPost(t *testing.T) {
	vportID := int64(55)
	item := normalizeUserPost(domain.PostRow{ID: 10, UserID: 7, VportID: &vportID})
	if item.AuthorKind != domain.AuthorKindVport {
		t.Fatalf("кросс-пост должен атрибутироваться бизнес-странице")
	}
	if item.AuthorID != 55 {
		t.Fatalf("ожидали автора 55, получили %d", item.AuthorID)
	}
}

func TestNormalizeVportPost(t *testing.T) {
	item := normalizeVportPost(domain.VportPostRow{ID: 3, VportID: 9})
	if item.Source != domain.SourceVportPosts {
		t.Fatalf("ожидали источник vport_posts, получили %s", item.Source)
	}
	if item.AuthorKind != domain.AuthorKindVport || item.AuthorID != 9 {
		t.Fatalf("ожидали автора-бизнес-страницу 9")
	}
}

func TestNormalizeMediaTypeDefault(t *testing.T) {
	if got := normalizeMediaType(nil); got != domain.MediaTypeDefault {
		t.Fatalf("пустой тип медиа должен стать %q, получили %q", domain.MediaTypeDefault, got)
	}
	empty := ""
	if got := normalizeMediaType(&empty); got != domain.MediaTypeDefault {
		t.Fatalf("пустая строка должна стать %q, получили %q", domain.MediaTypeDefault, got)
	}
	image := "image"
	if got := normalizeMediaType(&image); got != "image" {
		t.Fatalf("заданный тип медиа должен сохраняться, получили %q", got)
	}
}
