package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"vport-feed/internal/adapters/authorcache"
	"vport-feed/internal/adapters/repo"
	"vport-feed/internal/domain"
	"vport-feed/internal/infra/cache"
	"vport-feed/internal/infra/config"
	"vport-feed/internal/infra/db"
	httpinfra "vport-feed/internal/infra/http"
	applog "vport-feed/internal/infra/log"
	"vport-feed/internal/infra/metrics"
	"vport-feed/internal/infra/queue"
	"vport-feed/internal/usecase/feed"
)

func main() {
	cfg := config.Load()
	log.Logger = applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var authors domain.AuthorRepo = repoAdapter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		authors = authorcache.New(repoAdapter, cache.NewRedis(redisClient), cfg.Feed.AuthorCacheTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("api: общий кэш авторов включён")
	}

	var events domain.EventPublisher
	if cfg.AMQPURL != "" {
		publisher, err := queue.NewRabbitEventPublisher(cfg.AMQPURL, cfg.EventsQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer publisher.Close()
		events = publisher
	}

	feedService := feed.NewService(repoAdapter, authors)
	registry := feed.NewRegistry(feedService)

	server := httpinfra.NewServer(log.Logger)
	r := server.Router

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/api/v1/feed", func(w http.ResponseWriter, r *http.Request) {
		page, err := queryInt(r, "page", 0)
		if err != nil || page < 0 {
			writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
			return
		}
		pageSize, err := queryInt(r, "page_size", cfg.Feed.PageSize)
		if err != nil || pageSize <= 0 || pageSize > cfg.Feed.MaxPageSize {
			writeError(w, http.StatusBadRequest, "page_size is out of range")
			return
		}
		includeVideos := r.URL.Query().Get("include_videos") == "true"

		result, err := feedService.FetchPage(r.Context(), domain.FeedPageParams{
			Page:          page,
			PageSize:      pageSize,
			IncludeVideos: includeVideos,
			UserAuthors:   domain.UserAuthorCache{},
			VportAuthors:  domain.VportAuthorCache{},
		})
		if err != nil {
			log.Error().Err(err).Int("page", page).Msg("api: сборка страницы ленты")
			writeError(w, http.StatusInternalServerError, "failed to fetch feed page")
			return
		}
		writeJSON(w, feedPageResponse{
			Items:   renderItems(result),
			HasMore: result.HasMore,
		})
	})

	r.Post("/api/v1/feed/sessions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		req := createSessionRequest{PageSize: cfg.Feed.PageSize}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		if req.PageSize <= 0 || req.PageSize > cfg.Feed.MaxPageSize {
			writeError(w, http.StatusBadRequest, "page_size is out of range")
			return
		}
		id, _ := registry.Create(req.PageSize, req.IncludeVideos)
		publishEvent(r.Context(), events, domain.FeedEvent{
			Event:     domain.FeedEventSessionStarted,
			SessionID: id,
		})
		writeJSON(w, map[string]any{
			"session_id": id,
			"page_size":  req.PageSize,
		})
	})

	r.Post("/api/v1/feed/sessions/{id}/next", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		session, ok := registry.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		result, err := session.LoadNext(r.Context())
		if err != nil {
			if errors.Is(err, feed.ErrFetchInProgress) {
				writeError(w, http.StatusConflict, "page load already in progress")
				return
			}
			log.Error().Err(err).Str("session", id).Msg("api: загрузка страницы сессии")
			writeError(w, http.StatusInternalServerError, "failed to load next page")
			return
		}
		publishEvent(r.Context(), events, domain.FeedEvent{
			Event:     domain.FeedEventPageServed,
			SessionID: id,
			Page:      session.Page() - 1,
			ItemCount: len(result.Items),
		})
		writeJSON(w, feedPageResponse{
			Items:   renderItems(result),
			HasMore: result.HasMore,
		})
	})

	r.Post("/api/v1/feed/sessions/{id}/refresh", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		session, ok := registry.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		session.Refresh()
		publishEvent(r.Context(), events, domain.FeedEvent{
			Event:     domain.FeedEventSessionRefreshed,
			SessionID: id,
		})
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Delete("/api/v1/feed/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !registry.Delete(chi.URLParam(r, "id")) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// publishEvent отправляет событие, не влияя на ответ клиенту.
func publishEvent(ctx context.Context, events domain.EventPublisher, event domain.FeedEvent) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event", event.Event).Msg("api: событие не опубликовано")
	}
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

type createSessionRequest struct {
	PageSize      int  `json:"page_size"`
	IncludeVideos bool `json:"include_videos"`
}

type feedPageResponse struct {
	Items   []feedItemResponse `json:"items"`
	HasMore bool               `json:"has_more"`
}

type feedItemResponse struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	AuthorKind string    `json:"author_kind"`
	AuthorID   int64     `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text,omitempty"`
	MediaURL   string    `json:"media_url,omitempty"`
	MediaType  string    `json:"media_type"`
	Author     any       `json:"author,omitempty"`
}

// renderItems подставляет карточки авторов из кэшей страницы.
func renderItems(page domain.FeedPage) []feedItemResponse {
	out := make([]feedItemResponse, 0, len(page.Items))
	for _, item := range page.Items {
		resp := feedItemResponse{
			ID:         item.ID,
			Source:     string(item.Source),
			AuthorKind: string(item.AuthorKind),
			AuthorID:   item.AuthorID,
			CreatedAt:  item.CreatedAt,
			Title:      item.Title,
			Text:       item.Text,
			MediaURL:   item.MediaURL,
			MediaType:  item.MediaType,
		}
		switch item.AuthorKind {
		case domain.AuthorKindUser:
			if author, ok := page.UserAuthors[item.AuthorID]; ok {
				resp.Author = author
			}
		case domain.AuthorKindVport:
			if author, ok := page.VportAuthors[item.AuthorID]; ok {
				resp.Author = author
			}
		}
		out = append(out, resp)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
