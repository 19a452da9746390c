package apiv1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/infra/api"
	"coop-voucher/internal/usecase"
)

// TemplateService is the subset of usecase.TemplateUseCase the API needs.
type TemplateService interface {
	Create(ctx context.Context, req usecase.CreateTemplateRequest) (*model.Template, error)
	Get(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context) ([]*model.Template, error)
}

// Limits configures the per-address rate limits on the scan and share routes.
type Limits struct {
	Limiter api.Limiter // nil disables limiting
	Verify  int         // requests per window
	Share   int
	Window  time.Duration
}

type Server struct {
	vouchers      usecase.VoucherUseCase
	batches       usecase.BatchUseCase
	templates     TemplateService
	auth          *AuthManager
	limits        Limits
	timeout       time.Duration
	publicBaseURL string
	log           *zerolog.Logger
}

func NewServer(
	vouchers usecase.VoucherUseCase,
	batches usecase.BatchUseCase,
	templates TemplateService,
	auth *AuthManager,
	limits Limits,
	timeout time.Duration,
	publicBaseURL string,
	logger *zerolog.Logger,
) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{
		vouchers:      vouchers,
		batches:       batches,
		templates:     templates,
		auth:          auth,
		limits:        limits,
		timeout:       timeout,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           &l,
	}
}

// Routes builds the full router. Batch runs are synchronous, so the request
// timeout does not apply to POST /api/v1/batches.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(api.TraceID(), api.Recover(s.log), api.RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	shareLimit := api.RateLimit(s.limits.Limiter, "share", s.limits.Share, s.limits.Window, s.log)
	r.Route("/share/{token}", func(r chi.Router) {
		r.Use(shareLimit, api.Timeout(s.timeout))
		r.Get("/", s.handleShareBatch)
		r.Get("/{voucherID}", s.handleShareArtifact)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(api.RateLimit(s.limits.Limiter, "verify", s.limits.Verify, s.limits.Window, s.log))
			r.Use(s.auth.Require(RoleAdmin, RoleCashier), api.Timeout(s.timeout))
			r.Post("/verify", s.handleVerify)
			r.Post("/redeem", s.handleRedeem)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Require(RoleAdmin))
			r.Group(func(r chi.Router) {
				r.Use(api.Timeout(s.timeout))
				r.Get("/templates", s.handleListTemplates)
				r.Post("/templates", s.handleCreateTemplate)
				r.Get("/templates/{id}", s.handleGetTemplate)

				r.Get("/vouchers", s.handleListVouchers)
				r.Post("/vouchers", s.handleRegisterVoucher)
				r.Get("/vouchers/{id}", s.handleGetVoucher)
				r.Get("/vouchers/{id}/audit", s.handleVoucherAudit)
				r.Get("/vouchers/{id}/payload", s.handleVoucherPayload)
				r.Post("/vouchers/{id}/transition", s.handleTransition)

				r.Get("/batches/{id}", s.handleGetBatch)
			})
			r.Post("/batches", s.handleStartBatch)
		})
	})
	return r
}
