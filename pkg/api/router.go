// Package api mounts every HTTP handler on one chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"equity_valuation/pkg/api/auth"
	"equity_valuation/pkg/api/config"
	"equity_valuation/pkg/api/middleware"
	"equity_valuation/pkg/api/portfolio"
	"equity_valuation/pkg/api/prices"
	"equity_valuation/pkg/api/report"
	"equity_valuation/pkg/api/respond"
	"equity_valuation/pkg/api/valuation"
)

// Handlers are the feature handlers behind the router. Prices may be nil
// when no market data provider is configured.
type Handlers struct {
	Auth      *auth.Handler
	Config    *config.Handler
	Valuation *valuation.Handler
	Prices    *prices.Handler
	Report    *report.Handler
	Portfolio *portfolio.Handler
}

// Options tune the shared middleware.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the API router.
func NewRouter(h Handlers, tokens middleware.TokenParser, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(opts.CORSOrigins))
	if opts.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Config.HandleHealth)
		r.Get("/config/defaults", h.Config.HandleDefaults)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.HandleRegister)
			r.Post("/login", h.Auth.HandleLogin)
			r.Post("/refresh", h.Auth.HandleRefresh)
			r.Post("/logout", h.Auth.HandleLogout)
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(tokens))
				r.Get("/me", h.Auth.HandleMe)
				r.Put("/me", h.Auth.HandleUpdateMe)
			})
		})

		// Valuation runs work anonymously; signed-in runs are recorded.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(tokens))
			r.Post("/upload-excel", h.Valuation.HandleUploadExcel)
			r.Post("/statements", h.Valuation.HandleStatements)
			r.Post("/yahoo-profile", h.Valuation.HandleProfile)
			r.Post("/dcf", h.Valuation.HandleDCF)
			r.Post("/dcf/sensitivity", h.Valuation.HandleDCFSensitivity)
			r.Post("/eps", h.Valuation.HandleEPS)
			r.Post("/project-eps", h.Valuation.HandleEPS)
			r.Post("/wacc", h.Valuation.HandleWACC)
			r.Post("/generate-enhanced-report", h.Report.HandleGenerate)
			r.Post("/preview-report-sections", h.Report.HandlePreview)
		})

		if h.Prices != nil {
			r.Get("/price-series/benchmark/{code}", h.Prices.HandleBenchmark)
			r.Get("/price-series/{ticker}", h.Prices.HandleSeries)
			r.Get("/quote/{ticker}", h.Prices.HandleQuote)
		} else {
			r.Get("/price-series/*", marketDataDisabled)
			r.Get("/quote/*", marketDataDisabled)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))

			r.Get("/reports", h.Report.HandleList)
			r.Get("/reports/{ticker}", h.Report.HandleGet)
			r.Get("/reports/{ticker}/pdf", h.Report.HandleSavedPDF)

			r.Route("/portfolios", func(r chi.Router) {
				r.Get("/", h.Portfolio.HandleList)
				r.Post("/", h.Portfolio.HandleCreate)
				r.Get("/{pid}", h.Portfolio.HandleGet)
				r.Delete("/{pid}", h.Portfolio.HandleDelete)
				r.Get("/{pid}/transactions", h.Portfolio.HandleListTx)
				r.Post("/{pid}/transactions", h.Portfolio.HandleCreateTx)
				r.Patch("/{pid}/transactions/{txid}", h.Portfolio.HandleUpdateTx)
				r.Delete("/{pid}/transactions/{txid}", h.Portfolio.HandleDeleteTx)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})
	return r
}

func marketDataDisabled(w http.ResponseWriter, _ *http.Request) {
	respond.Error(w, http.StatusServiceUnavailable, valuation.ErrMarketDataDisabled.Error())
}
