package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/http/httpx"
	"github.com/MrJamesThe3rd/pharmacy/internal/importer"
)

type Handler struct {
	svc       *catalog.Service
	importSvc *importer.Service
	log       logrus.FieldLogger
}

func NewHandler(svc *catalog.Service, importSvc *importer.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, importSvc: importSvc, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.listSuppliers)
		r.Post("/", h.createSupplier)
	})

	r.Route("/manufacturers", func(r chi.Router) {
		r.Get("/", h.listManufacturers)
		r.Post("/", h.createManufacturer)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
	})

	r.Route("/active-ingredients", func(r chi.Router) {
		r.Get("/", h.listIngredients)
		r.Post("/", h.createIngredient)
	})

	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", h.listMedicines)
		r.Post("/", h.createMedicine)
		r.Post("/import", h.importMedicines)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getMedicine)
			r.Patch("/", h.updateMedicine)
			r.Delete("/", h.deleteMedicine)
			r.Get("/similar", h.similarMedicines)

			r.Get("/batches", h.listBatches)
			r.Post("/batches", h.createBatch)
			r.Get("/batches/{batchID}", h.getBatch)
			r.Patch("/batches/{batchID}", h.updateBatch)
			r.Delete("/batches/{batchID}", h.deleteBatch)
		})
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.Error(w, r, h.log, err)
}

type createSupplierRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	PhoneNumber string `json:"phone_number" validate:"max=30"`
	Address     string `json:"address" validate:"max=200"`
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req createSupplierRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	sup, err := h.svc.CreateSupplier(r.Context(), catalog.SupplierParams{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toSupplierResponse(sup))
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	sups, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]supplierResponse, len(sups))
	for i, s := range sups {
		resp[i] = toSupplierResponse(s)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type createManufacturerRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Country     string `json:"country" validate:"required,len=2"`
	PhoneNumber string `json:"phone_number" validate:"max=30"`
	Address     string `json:"address" validate:"max=200"`
	Website     string `json:"website" validate:"omitempty,url,max=200"`
}

func (h *Handler) createManufacturer(w http.ResponseWriter, r *http.Request) {
	var req createManufacturerRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	mf, err := h.svc.CreateManufacturer(r.Context(), catalog.ManufacturerParams{
		Name:        req.Name,
		Country:     req.Country,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Website:     req.Website,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toManufacturerResponse(mf))
}

func (h *Handler) listManufacturers(w http.ResponseWriter, r *http.Request) {
	mfs, err := h.svc.ListManufacturers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]manufacturerResponse, len(mfs))
	for i, m := range mfs {
		resp[i] = toManufacturerResponse(m)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type createCategoryRequest struct {
	Name     string     `json:"name" validate:"required,max=100"`
	ParentID *uuid.UUID `json:"parent_id"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.svc.CreateCategory(r.Context(), catalog.CategoryParams{Name: req.Name, ParentID: req.ParentID})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, categoryResponse{ID: c.ID, Name: c.Name, ParentID: c.ParentID})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]categoryResponse, len(cats))
	for i, c := range cats {
		resp[i] = categoryResponse{ID: c.ID, Name: c.Name, ParentID: c.ParentID}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type createIngredientRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (h *Handler) createIngredient(w http.ResponseWriter, r *http.Request) {
	var req createIngredientRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	ing, err := h.svc.CreateActiveIngredient(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, ingredientResponse{ID: ing.ID, Name: ing.Name})
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	ings, err := h.svc.ListActiveIngredients(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]ingredientResponse, len(ings))
	for i, ing := range ings {
		resp[i] = ingredientResponse{ID: ing.ID, Name: ing.Name}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

type createMedicineRequest struct {
	InternationalBarcode string          `json:"international_barcode" validate:"required,numeric,min=13,max=16"`
	Name                 string          `json:"name" validate:"required,max=50"`
	ActiveIngredientID   uuid.UUID       `json:"active_ingredient_id" validate:"required"`
	CategoryID           uuid.UUID       `json:"category_id" validate:"required"`
	ManufacturerID       uuid.UUID       `json:"manufacturer_id" validate:"required"`
	UnitsPerPack         int             `json:"units_per_pack" validate:"required,min=1,max=32767"`
	Price                decimal.Decimal `json:"price"`
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req createMedicineRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := h.svc.CreateMedicine(r.Context(), catalog.MedicineParams{
		InternationalBarcode: req.InternationalBarcode,
		Name:                 req.Name,
		ActiveIngredientID:   req.ActiveIngredientID,
		CategoryID:           req.CategoryID,
		ManufacturerID:       req.ManufacturerID,
		UnitsPerPack:         req.UnitsPerPack,
		Price:                req.Price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toMedicineResponse(m))
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.ListMedicines(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMedicineList(ms))
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := h.svc.GetMedicine(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMedicineResponse(m))
}

func (h *Handler) similarMedicines(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ms, err := h.svc.SimilarMedicines(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMedicineList(ms))
}

type updateMedicineRequest struct {
	InternationalBarcode *string          `json:"international_barcode"`
	Name                 *string          `json:"name" validate:"omitempty,max=50"`
	ActiveIngredientID   *uuid.UUID       `json:"active_ingredient_id"`
	CategoryID           *uuid.UUID       `json:"category_id"`
	ManufacturerID       *uuid.UUID       `json:"manufacturer_id"`
	UnitsPerPack         *int             `json:"units_per_pack" validate:"omitempty,min=1,max=32767"`
	Price                *decimal.Decimal `json:"price"`
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateMedicineRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if req.InternationalBarcode != nil {
		h.fail(w, r, apperr.Invalid("international_barcode", "cannot be changed"))
		return
	}

	m, err := h.svc.UpdateMedicine(r.Context(), id, catalog.MedicineUpdate{
		Name:               req.Name,
		ActiveIngredientID: req.ActiveIngredientID,
		CategoryID:         req.CategoryID,
		ManufacturerID:     req.ManufacturerID,
		UnitsPerPack:       req.UnitsPerPack,
		Price:              req.Price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMedicineResponse(m))
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.DeleteMedicine(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) importMedicines(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		h.fail(w, r, apperr.Invalid("file", "failed to parse form: %v", err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, apperr.Invalid("file", "is required"))
		return
	}
	defer file.Close()

	format := importer.Format(r.FormValue("format"))
	if format == "" {
		format = importer.FormatCSV
	}

	res, err := h.importSvc.Import(r.Context(), format, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toImportResponse(res))
}

type medicineBatchIDs struct {
	medicine uuid.UUID
	batch    uuid.UUID
}

func batchIDs(r *http.Request) (medicineBatchIDs, error) {
	medID, err := httpx.URLUUID(r, "id")
	if err != nil {
		return medicineBatchIDs{}, err
	}

	batchID, err := httpx.URLUUID(r, "batchID")
	if err != nil {
		return medicineBatchIDs{}, err
	}

	return medicineBatchIDs{medicine: medID, batch: batchID}, nil
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	bs, err := h.svc.ListBatches(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ToBatchList(bs))
}

type createBatchRequest struct {
	ExpiryDate string `json:"expiry_date" validate:"required"`
	Packs      int64  `json:"packs"`
	Units      int64  `json:"units"`
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req createBatchRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.svc.CreateBatch(r.Context(), id, catalog.BatchParams{
		ExpiryMonth: req.ExpiryDate,
		Packs:       req.Packs,
		Units:       req.Units,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, ToBatchResponse(b))
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	ids, err := batchIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.svc.GetBatch(r.Context(), ids.medicine, ids.batch)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ToBatchResponse(b))
}

type updateBatchRequest struct {
	Packs *int64 `json:"packs"`
	Units int64  `json:"units"`
}

func (h *Handler) updateBatch(w http.ResponseWriter, r *http.Request) {
	ids, err := batchIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateBatchRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.svc.UpdateBatch(r.Context(), ids.medicine, ids.batch, catalog.BatchUpdate{Packs: req.Packs, Units: req.Units})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ToBatchResponse(b))
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	ids, err := batchIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.DeleteBatch(r.Context(), ids.medicine, ids.batch); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
