package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// api bundles everything a handler needs. Handlers are methods on api so
// they share these without a global.
type api struct {
	files         FileService
	repos         RepoService
	runner        SandboxRunner
	archive       ArchiveStore
	metrics       *metrics.Metrics
	started       time.Time
	maxUploadSize int64
	status        StatusSources
}

// NewRouter builds the full chi router: unauthenticated /health, then
// /api/v1/* behind API key auth, CORS, and gzip compression. maxUploadSize
// bounds how much of an upload body is read before rejecting it, so a
// client cannot force unbounded buffering ahead of the service-layer check.
// status bundles the background-state accessors the /status endpoint
// reports; a zero-value StatusSources is fine, every field is optional.
func NewRouter(apiKey, corsOrigins string, files FileService, repos RepoService, runner SandboxRunner, archive ArchiveStore, m *metrics.Metrics, maxUploadSize int64, status StatusSources) http.Handler {
	a := &api{files: files, repos: repos, runner: runner, archive: archive, metrics: m, started: time.Now().UTC(), maxUploadSize: maxUploadSize, status: status}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(CORS(corsOrigins))

	r.Get("/health", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(apiKey))

		// Gzip only the JSON-returning routes. Download and archive stream
		// raw bytes with their own Content-Length/compression handling;
		// wrapping them in gzip would fight both.
		r.Group(func(r chi.Router) {
			r.Use(Gzip)

			r.Get("/status", a.handleStatus)

			r.Post("/repos", a.handleCreateRepo)
			r.Get("/repos", a.handleListRepos)
			r.Get("/repos/{id}", a.handleGetRepo)
			r.Patch("/repos/{id}", a.handleUpdateRepo)
			r.Delete("/repos/{id}", a.handleDeleteRepo)

			r.Get("/repos/{id}/files", a.handleListFiles)
			r.Post("/repos/{id}/files/*", a.handleUploadFile)
			r.Delete("/repos/{id}/files/*", a.handleDeleteFile)

			r.Post("/repos/{id}/files-move", a.handleMoveFile)
			r.Post("/repos/{id}/files-copy", a.handleCopyFile)

			r.Post("/repos/{id}/exec", a.handleExec)
		})

		r.Get("/repos/{id}/files/*", a.handleDownloadFile)
		r.Head("/repos/{id}/files/*", a.handleHeadFile)
		r.Post("/repos/{id}/archive", a.handleArchive)
	})

	return r
}

// requestLogger mirrors the teacher's access-log middleware: wrap the
// response writer to capture status and bytes, log one line per request,
// and record the same observation in Prometheus.
func (a *api) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		a.metrics.ObserveHTTP(route, r.Method, strconv.Itoa(ww.Status()), dur)

		logger.Info("http request",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Status(ww.Status()),
			logger.DurationMs(float64(dur.Milliseconds())),
			"method", r.Method,
			"path", r.URL.Path,
			"bytes", ww.BytesWritten(),
		)
	})
}
