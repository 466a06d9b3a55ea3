package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/auth"
	authhttp "github.com/MrJamesThe3rd/pharmacy/internal/http/auth"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/httpx"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/invoice"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/order"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/report"
)

type Options struct {
	AllowedOrigins []string
	Tokens         httpx.TokenParser
	Log            logrus.FieldLogger
}

func New(
	opts Options,
	authV1 *authhttp.Handler,
	catalogV1 *catalog.Handler,
	ordersV1 *order.Handler,
	invoicesV1 *invoice.Handler,
	reportsV1 *report.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpx.RequestLogger(opts.Log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			authV1.Routes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httpx.Authenticate(opts.Tokens, opts.Log))

			r.Group(func(r chi.Router) {
				r.Use(httpx.RequireWrite(opts.Log, auth.RolePharmacist))
				catalogV1.Routes(r)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Use(httpx.RequireWrite(opts.Log, auth.RolePharmacist))
				ordersV1.Routes(r)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				r.Use(httpx.RequireWrite(opts.Log, auth.RoleCashier))
				invoicesV1.Routes(r)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Use(httpx.RequireAll(opts.Log, auth.RolePharmacist))
				reportsV1.Routes(r)
			})
		})
	})

	return router
}
