package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"speechgen/internal/app/speech"
	"speechgen/pkg/slg"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogchi "github.com/samber/slog-chi"
)

const (
	ResponseModeJSON = "json"
	ResponseModeFile = "file"
)

type Config struct {
	Port    int           `yaml:"port" env:"PORT"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// ResponseMode picks what POST /generate-speech answers with: artifact
	// names as json, or the wav bytes themselves.
	ResponseMode string `yaml:"response_mode" env:"RESPONSE_MODE"`
}

func (c *Config) Defaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.ResponseMode == "" {
		c.ResponseMode = ResponseModeJSON
	}
}

func (c *Config) Validate() error {
	switch c.ResponseMode {
	case ResponseModeJSON, ResponseModeFile:
	default:
		return errors.New("response_mode must be json or file")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port is out of range")
	}

	return nil
}

type Generator interface {
	Generate(ctx context.Context, req *speech.Request) (*speech.Result, error)
	OutputDir() string
}

// Health is reported as is by GET /health. Everything in it is fixed at startup.
type Health struct {
	Device           string
	TTSModel         string
	SpectrogramModel string
}

type API struct {
	logger *slog.Logger

	cfg *Config

	gen    Generator
	health *Health

	maxUploadBytes int64

	gatherer prometheus.Gatherer
}

func NewAPI(cfg *Config, logger *slog.Logger, gen Generator, health *Health, maxUploadBytes int64, gatherer prometheus.Gatherer) *API {
	return &API{
		logger: logger,

		cfg: cfg,

		gen:    gen,
		health: health,

		maxUploadBytes: maxUploadBytes,

		gatherer: gatherer,
	}
}

func (api *API) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(slogchi.New(api.logger))
	router.Use(api.requestLogger)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.StripSlashes)

	router.Use(middleware.Recoverer)

	router.NotFound(api.notFound)

	if api.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(api.gatherer, promhttp.HandlerOpts{}))
	} else {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Get("/", api.index)
	router.Get("/health", api.healthCheck)

	router.Post("/generate-speech", api.generateSpeech)

	router.Get("/generated_audio/{file}", api.generatedAudio)

	router.Handle("/static/*", http.FileServerFS(staticFS))
	router.Handle("/favicon.ico", http.RedirectHandler("/static/favicon.svg", http.StatusMovedPermanently))

	return router
}

// requestLogger makes the access logger reachable from handlers and the
// pipeline through the request context.
func (api *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := api.logger.With("request_id", middleware.GetReqID(r.Context()))

		next.ServeHTTP(w, r.WithContext(slg.WithSlog(r.Context(), logger)))
	})
}
