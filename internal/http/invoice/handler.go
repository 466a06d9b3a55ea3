package invoice

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/httpx"
	"github.com/MrJamesThe3rd/pharmacy/internal/period"
	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
)

type Handler struct {
	svc *sale.Service
	log logrus.FieldLogger
}

func NewHandler(svc *sale.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/return", h.returnInvoice)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Post("/{id}/refund", h.refund)
}

type itemRequest struct {
	Barcode  string `json:"barcode" validate:"required"`
	Quantity *int64 `json:"quantity" validate:"omitnil,gt=0"`
}

func toItemParams(items []itemRequest) []sale.ItemParams {
	if items == nil {
		return nil
	}

	params := make([]sale.ItemParams, len(items))
	for i, it := range items {
		params[i] = sale.ItemParams{Barcode: it.Barcode, Quantity: it.Quantity}
	}

	return params
}

type createRequest struct {
	PaymentStatus sale.PaymentStatus `json:"payment_status"`
	Discount      decimal.Decimal    `json:"discount"`
	Items         []itemRequest      `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	inv, err := h.svc.Create(r.Context(), sale.CreateParams{
		PaymentStatus: req.PaymentStatus,
		Discount:      req.Discount,
		Items:         toItemParams(req.Items),
	})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toResponse(inv))
}

type updateRequest struct {
	PaymentStatus *sale.PaymentStatus `json:"payment_status"`
	Discount      *decimal.Decimal    `json:"discount"`
	Items         []itemRequest       `json:"items" validate:"omitempty,dive"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	var req updateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	inv, err := h.svc.Update(r.Context(), id, sale.UpdateParams{
		PaymentStatus: req.PaymentStatus,
		Discount:      req.Discount,
		Items:         toItemParams(req.Items),
	})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponse(inv))
}

type returnRequest struct {
	Invoice uuid.UUID `json:"invoice" validate:"required"`
}

func (h *Handler) returnInvoice(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.doRefund(w, r, req.Invoice)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	h.doRefund(w, r, id)
}

func (h *Handler) doRefund(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	inv, err := h.svc.Refund(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, err := period.FromQuery(r.URL.Query())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	invoices, err := h.svc.List(r.Context(), sale.ListFilter{Period: p})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toResponse(inv)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type itemResponse struct {
	ID         uuid.UUID `json:"id"`
	BatchID    uuid.UUID `json:"batch_id"`
	Barcode    string    `json:"barcode"`
	Medicine   string    `json:"medicine"`
	ExpiryDate string    `json:"expiry_date"`
	Quantity   int64     `json:"quantity"`
	Price      string    `json:"price"`
}

type invoiceResponse struct {
	ID                  uuid.UUID          `json:"id"`
	PaymentStatus       sale.PaymentStatus `json:"payment_status"`
	Discount            string             `json:"discount"`
	TotalBeforeDiscount string             `json:"total_before_discount"`
	TotalAfterDiscount  string             `json:"total_after_discount"`
	Items               []itemResponse     `json:"items"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           *time.Time         `json:"updated_at,omitempty"`
}

func toResponse(inv *sale.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:                  inv.ID,
		PaymentStatus:       inv.PaymentStatus,
		Discount:            inv.Discount.StringFixed(2),
		TotalBeforeDiscount: inv.TotalBeforeDiscount.StringFixed(2),
		TotalAfterDiscount:  inv.TotalAfterDiscount().StringFixed(2),
		Items:               make([]itemResponse, len(inv.Items)),
		CreatedAt:           inv.CreatedAt,
		UpdatedAt:           inv.UpdatedAt,
	}

	for i, it := range inv.Items {
		ir := itemResponse{
			ID:         it.ID,
			BatchID:    it.Batch.ID,
			Barcode:    it.Batch.Barcode,
			ExpiryDate: catalog.FormatExpiryMonth(it.Batch.ExpiryDate),
			Quantity:   it.Quantity,
		}

		if it.Batch.Medicine != nil {
			ir.Medicine = it.Batch.Medicine.Name
		}

		if total, err := it.Total(); err == nil {
			ir.Price = total.StringFixed(2)
		}

		resp.Items[i] = ir
	}

	return resp
}
