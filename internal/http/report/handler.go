package report

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	httpcatalog "github.com/MrJamesThe3rd/pharmacy/internal/http/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/httpx"
	"github.com/MrJamesThe3rd/pharmacy/internal/report"
)

type Handler struct {
	svc *report.Service
	log logrus.FieldLogger
}

func NewHandler(svc *report.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{kind}", h.show)
	r.Get("/{kind}/export.xlsx", h.export)
}

type reportResponse struct {
	Kind        report.Kind                 `json:"kind"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Months      *int                        `json:"months,omitempty"`
	Batches     []httpcatalog.BatchResponse `json:"batches"`
}

func (h *Handler) run(r *http.Request) (*report.Result, error) {
	kind, err := report.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return nil, err
	}

	q := report.Query{Kind: kind}

	if raw := r.URL.Query().Get("months"); raw != "" {
		months, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperr.Invalid("months", "must be a whole number")
		}

		q.Months = &months
	}

	return h.svc.Run(r.Context(), q)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	res, err := h.run(r)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	resp := reportResponse{
		Kind:        res.Kind,
		GeneratedAt: res.GeneratedAt,
		Batches:     httpcatalog.ToBatchList(res.Batches),
	}

	if res.Kind == report.KindNearExpiry {
		resp.Months = &res.Months
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	res, err := h.run(r)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, res); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
