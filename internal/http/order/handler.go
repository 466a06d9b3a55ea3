package order

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/httpx"
	"github.com/MrJamesThe3rd/pharmacy/internal/order"
	"github.com/MrJamesThe3rd/pharmacy/internal/period"
)

type Handler struct {
	svc *order.Service
	log logrus.FieldLogger
}

func NewHandler(svc *order.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type itemRequest struct {
	Medicine             string          `json:"medicine" validate:"required_without=InternationalBarcode,max=50"`
	InternationalBarcode string          `json:"international_barcode" validate:"required_without=Medicine"`
	Packs                int64           `json:"packs" validate:"gte=0"`
	Units                int64           `json:"units" validate:"gte=0"`
	Discount             decimal.Decimal `json:"discount"`
	ExpiryDate           string          `json:"expiry_date" validate:"required"`
}

func toItemParams(items []itemRequest) []order.ItemParams {
	if items == nil {
		return nil
	}

	params := make([]order.ItemParams, len(items))
	for i, it := range items {
		params[i] = order.ItemParams{
			Medicine:             it.Medicine,
			InternationalBarcode: it.InternationalBarcode,
			Packs:                it.Packs,
			Units:                it.Units,
			Discount:             it.Discount,
			ExpiryMonth:          it.ExpiryDate,
		}
	}

	return params
}

type createRequest struct {
	Supplier uuid.UUID     `json:"supplier" validate:"required"`
	Items    []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	o, err := h.svc.Create(r.Context(), order.CreateParams{
		SupplierID: req.Supplier,
		Items:      toItemParams(req.Items),
	})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toResponse(o))
}

type updateRequest struct {
	Supplier *uuid.UUID    `json:"supplier"`
	Items    []itemRequest `json:"items" validate:"omitempty,dive"`
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

	o, err := h.svc.Update(r.Context(), id, order.UpdateParams{
		SupplierID: req.Supplier,
		Items:      toItemParams(req.Items),
	})
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := period.FromQuery(r.URL.Query())
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	orders, err := h.svc.List(r.Context(), filter)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toResponse(o)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type itemResponse struct {
	ID          uuid.UUID `json:"id"`
	BatchID     uuid.UUID `json:"batch_id"`
	Barcode     string    `json:"barcode"`
	Medicine    string    `json:"medicine"`
	ExpiryDate  string    `json:"expiry_date"`
	Quantity    int64     `json:"quantity"`
	Amount      string    `json:"amount"`
	Discount    string    `json:"discount"`
	PriceBefore string    `json:"price_before_discount"`
	PriceAfter  string    `json:"price_after_discount"`
}

type orderResponse struct {
	ID          uuid.UUID      `json:"id"`
	SupplierID  uuid.UUID      `json:"supplier_id"`
	Supplier    string         `json:"supplier"`
	TotalBefore string         `json:"total_before_discount"`
	TotalAfter  string         `json:"total_after_discount"`
	Items       []itemResponse `json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

func toResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		SupplierID:  o.SupplierID,
		Supplier:    o.Supplier,
		TotalBefore: o.TotalBefore.StringFixed(2),
		TotalAfter:  o.TotalAfter.StringFixed(2),
		Items:       make([]itemResponse, len(o.Items)),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}

	for i, it := range o.Items {
		ir := itemResponse{
			ID:       it.ID,
			BatchID:  it.Batch.ID,
			Barcode:  it.Batch.Barcode,
			Quantity: it.Quantity,
			Discount: it.Discount.StringFixed(2),
		}

		ir.ExpiryDate = catalog.FormatExpiryMonth(it.Batch.ExpiryDate)

		upp := 1
		if it.Batch.Medicine != nil {
			ir.Medicine = it.Batch.Medicine.Name
			upp = it.Batch.Medicine.UnitsPerPack
		}

		ir.Amount = catalog.Packets(it.Quantity, upp)

		if p, err := it.PriceBefore(); err == nil {
			ir.PriceBefore = p.StringFixed(2)
		}

		if p, err := it.PriceAfter(); err == nil {
			ir.PriceAfter = p.StringFixed(2)
		}

		resp.Items[i] = ir
	}

	return resp
}
