package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FeedPagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_pages_total",
		Help: "Количество собранных страниц ленты",
	})
	FeedPageBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_page_build_seconds",
		Help:    "Время сборки одной страницы ленты",
		Buckets: prometheus.DefBuckets,
	})
	FeedPageItems = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_page_items",
		Help:    "Размер отданной страницы ленты в элементах",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
	FeedFetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_fetch_errors_total",
		Help: "Ошибки сборки страницы ленты по этапам",
	}, []string{"stage"})
	HydratedAuthorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_hydrated_authors_total",
		Help: "Количество загруженных карточек авторов по типам",
	}, []string{"kind"})
	AuthorCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_author_cache_lookups_total",
		Help: "Обращения к общему кэшу авторов",
	}, []string{"kind", "result"})
	ActiveFeedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_active_sessions",
		Help: "Количество открытых сессий ленты",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FeedPagesTotal,
		FeedPageBuildSeconds,
		FeedPageItems,
		FeedFetchErrors,
		HydratedAuthorsTotal,
		AuthorCacheLookups,
		ActiveFeedSessions,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveFeedPage записывает итог сборки страницы ленты.
func ObserveFeedPage(start time.Time, itemCount int, err error) {
	FeedPageBuildSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return
	}
	FeedPagesTotal.Inc()
	FeedPageItems.Observe(float64(itemCount))
}

// IncFetchError увеличивает счётчик ошибок этапа сборки страницы.
func IncFetchError(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	FeedFetchErrors.WithLabelValues(stage).Inc()
}

// AddHydratedAuthors учитывает загруженные карточки авторов.
func AddHydratedAuthors(kind string, count int) {
	if count <= 0 {
		return
	}
	HydratedAuthorsTotal.WithLabelValues(kind).Add(float64(count))
}

// IncAuthorCacheLookup учитывает попадание или промах общего кэша авторов.
func IncAuthorCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	AuthorCacheLookups.WithLabelValues(kind, result).Inc()
}
