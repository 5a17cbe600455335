package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bomilitar/plataforma/internal/config"
	httpmiddleware "github.com/bomilitar/plataforma/internal/http/middleware"
	"github.com/bomilitar/plataforma/internal/metrics"
	"github.com/bomilitar/plataforma/internal/ocorrencia"
	"github.com/bomilitar/plataforma/internal/service"
	"github.com/bomilitar/plataforma/internal/storage"
)

// Deps reúne os serviços já construídos em cmd/api.
type Deps struct {
	Auth        *service.AuthService
	Ocorrencias *ocorrencia.Service
	Uploads     *storage.DiskUploader
	Ready       func(ctx context.Context) error
}

type Handler struct {
	cfg           *config.Config
	authService   *service.AuthService
	ocorrencias   *ocorrencia.Service
	uploads       *storage.DiskUploader
	ready         func(ctx context.Context) error
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	h := &Handler{
		cfg:           cfg,
		authService:   deps.Auth,
		ocorrencias:   deps.Ocorrencias,
		uploads:       deps.Uploads,
		ready:         deps.Ready,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Metrics)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Handle("/metrics", metrics.Handler())

		public.Route("/api/auth", func(auth chi.Router) {
			auth.Post("/cidadao/register", h.RegisterCidadao)
			auth.Post("/cidadao/login", h.LoginCidadao)
			auth.Post("/atendente/register", h.RegisterAtendente)
			auth.Post("/atendente/login", h.LoginAtendente)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(h.authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/api/auth/me", h.Me)

		private.Route("/api/occurrences", func(oc chi.Router) {
			oc.With(httpmiddleware.RequireCidadao).Post("/", h.CriarOcorrencia)
			oc.Get("/", h.ListarOcorrencias)
			oc.Get("/{id}", h.DetalharOcorrencia)
			oc.With(httpmiddleware.RequireAtendente).Patch("/{id}/status", h.AtualizarStatus)
			oc.Post("/{id}/media", h.AnexarMedia)
			oc.Get("/{id}/messages", h.ListarMensagens)
			oc.Post("/{id}/messages", h.EnviarMensagem)
		})

		private.With(httpmiddleware.RequireAtendente).Get("/api/stats", h.Estatisticas)
		private.Get("/uploads/{filename}", h.ServirUpload)
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida as dependências externas configuradas.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ready(ctx); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"detail": err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
