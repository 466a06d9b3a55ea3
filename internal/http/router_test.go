package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/auth"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	apihttp "github.com/MrJamesThe3rd/pharmacy/internal/http"
	authhttp "github.com/MrJamesThe3rd/pharmacy/internal/http/auth"
	cataloghttp "github.com/MrJamesThe3rd/pharmacy/internal/http/catalog"
	invoicehttp "github.com/MrJamesThe3rd/pharmacy/internal/http/invoice"
	orderhttp "github.com/MrJamesThe3rd/pharmacy/internal/http/order"
	reporthttp "github.com/MrJamesThe3rd/pharmacy/internal/http/report"
	"github.com/MrJamesThe3rd/pharmacy/internal/importer"
	"github.com/MrJamesThe3rd/pharmacy/internal/order"
	"github.com/MrJamesThe3rd/pharmacy/internal/report"
	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	handler http.Handler
	catalog *catalog.MockRepository
	users   *auth.MockRepository
	reports *report.MockRepository
	orders  *order.MockRepository
	sales   *sale.MockRepository
	auth    *auth.Service
	ctrl    *gomock.Controller
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	ctrl := gomock.NewController(t)
	logger, _ := test.NewNullLogger()
	clock := func() time.Time { return fixedNow }

	api := &testAPI{
		catalog: catalog.NewMockRepository(ctrl),
		users:   auth.NewMockRepository(ctrl),
		reports: report.NewMockRepository(ctrl),
		orders:  order.NewMockRepository(ctrl),
		sales:   sale.NewMockRepository(ctrl),
		ctrl:    ctrl,
	}

	api.auth = auth.NewService(api.users, "router-test", time.Hour, logger, auth.WithClock(clock), auth.WithHashCost(bcrypt.MinCost))
	catalogSvc := catalog.NewService(api.catalog, logger, catalog.WithClock(clock))

	api.handler = apihttp.New(
		apihttp.Options{AllowedOrigins: []string{"*"}, Tokens: api.auth, Log: logger},
		authhttp.NewHandler(api.auth, logger),
		cataloghttp.NewHandler(catalogSvc, importer.NewService(catalogSvc, logger), logger),
		orderhttp.NewHandler(order.NewService(api.orders, logger, clock), logger),
		invoicehttp.NewHandler(sale.NewService(api.sales, logger, clock), logger),
		reporthttp.NewHandler(report.NewService(api.reports, clock, 1), logger),
	)

	return api
}

func (a *testAPI) token(t *testing.T, role auth.Role) string {
	t.Helper()

	tok, err := a.auth.Issue(&auth.User{ID: uuid.New(), Role: role})
	require.NoError(t, err)

	return tok
}

func (a *testAPI) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	return rec
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Login(t *testing.T) {
	api := newTestAPI(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("counter-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &auth.User{ID: uuid.New(), Email: "cashier@pharmacy.test", PasswordHash: string(hash), Role: auth.RoleCashier}
	api.users.EXPECT().GetUserByEmail(gomock.Any(), "cashier@pharmacy.test").Return(user, nil).Times(2)

	rec := api.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"cashier@pharmacy.test","password":"counter-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cashier", body.User.Role)

	p, err := api.auth.Parse(body.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)

	rec = api.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"cashier@pharmacy.test","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CatalogPolicy(t *testing.T) {
	api := newTestAPI(t)

	api.catalog.EXPECT().ListSuppliers(gomock.Any()).Return([]*catalog.Supplier{{ID: uuid.New(), Name: "Ibn Sina Pharma"}}, nil)

	rec := api.do(http.MethodGet, "/api/v1/suppliers", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/suppliers", api.token(t, auth.RoleCashier), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ibn Sina Pharma")

	rec = api.do(http.MethodPost, "/api/v1/suppliers", api.token(t, auth.RoleCashier), `{"name":"New Supplier"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_GetMedicine(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, auth.RoleAccountant)
	id := uuid.New()

	api.catalog.EXPECT().GetMedicine(gomock.Any(), id).Return(&catalog.Medicine{
		ID:                   id,
		InternationalBarcode: "6221234567890",
		Name:                 "Panadol Extra",
		UnitsPerPack:         3,
		Price:                decimal.RequireFromString("10"),
		StockUnits:           7,
	}, nil)

	rec := api.do(http.MethodGet, "/api/v1/medicines/"+id.String(), tok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "10.00", body["price"])
	assert.Equal(t, "3.33", body["unit_price"])
	assert.Equal(t, "2:1", body["stock"])
	assert.Equal(t, true, body["is_available"])

	rec = api.do(http.MethodGet, "/api/v1/medicines/not-a-uuid", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CreateSupplierValidation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/suppliers", api.token(t, auth.RolePharmacist), `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "name")
}

func TestRouter_UpdateMedicineBarcodeImmutable(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPatch, "/api/v1/medicines/"+uuid.NewString(), api.token(t, auth.RolePharmacist), `{"international_barcode":"6220000000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "international_barcode")
}

func TestRouter_Reports(t *testing.T) {
	api := newTestAPI(t)

	med := &catalog.Medicine{ID: uuid.New(), Name: "Augmentin 1g", InternationalBarcode: "6221000000017", UnitsPerPack: 14, Price: decimal.RequireFromString("98")}
	batches := []*catalog.Batch{{ID: uuid.New(), Barcode: "1234567890123456", ExpiryDate: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), MedicineID: med.ID, StockUnits: 20, Medicine: med}}
	api.reports.EXPECT().ListBatches(gomock.Any(), gomock.Any()).Return(batches, nil).Times(2)

	pharm := api.token(t, auth.RolePharmacist)

	rec := api.do(http.MethodGet, "/api/v1/reports/near-expiry?months=2", pharm, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"stock":"1:6"`)
	assert.Contains(t, rec.Body.String(), `"months":2`)

	rec = api.do(http.MethodGet, "/api/v1/reports/expired/export.xlsx", pharm, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "expired-20261018.xlsx")

	rec = api.do(http.MethodGet, "/api/v1/reports/expired", api.token(t, auth.RoleCashier), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/reports/near-expiry?months=-1", pharm, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/reports/bestsellers", pharm, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_InvoiceRequestValidation(t *testing.T) {
	api := newTestAPI(t)
	cashier := api.token(t, auth.RoleCashier)

	rec := api.do(http.MethodPost, "/api/v1/invoices", cashier, `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items"`)

	rec = api.do(http.MethodPost, "/api/v1/invoices", cashier, `{"items":[{"barcode":"1","quantity":0}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items[0].quantity")

	rec = api.do(http.MethodPost, "/api/v1/orders", cashier, `{"supplier":"`+uuid.NewString()+`","items":[]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_NotFoundMapping(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()

	api.catalog.EXPECT().GetMedicine(gomock.Any(), id).Return(nil, apperr.NotFound("medicine"))

	rec := api.do(http.MethodGet, "/api/v1/medicines/"+id.String()+"/batches", api.token(t, auth.RolePharmacist), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_InvoiceDefaultQuantity(t *testing.T) {
	api := newTestAPI(t)
	tx := sale.NewMockTx(api.ctrl)

	med := &catalog.Medicine{ID: uuid.New(), Name: "Panadol Extra", UnitsPerPack: 10, Price: decimal.RequireFromString("25")}
	batch := &catalog.Batch{
		ID:         uuid.New(),
		Barcode:    "1234567890123456",
		ExpiryDate: time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC),
		MedicineID: med.ID,
		StockUnits: 12,
		Medicine:   med,
	}

	api.sales.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, inv *sale.Invoice) error {
		inv.ID = uuid.New()
		inv.CreatedAt = fixedNow

		return nil
	})
	tx.EXPECT().FindBatch(gomock.Any(), "1234567890123456").Return(batch, nil)
	tx.EXPECT().AdjustStock(gomock.Any(), batch.ID, int64(-1)).Return(int64(11), nil)
	tx.EXPECT().CreateItem(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, item *sale.Item) error {
		assert.Equal(t, int64(1), item.Quantity)

		return nil
	})
	tx.EXPECT().UpdateInvoice(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil).AnyTimes()

	rec := api.do(http.MethodPost, "/api/v1/invoices", api.token(t, auth.RoleCashier), `{"items":[{"barcode":"1234567890123456"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"quantity":1`)
	assert.Contains(t, rec.Body.String(), `"total_before_discount":"2.50"`)
}

func TestRouter_OrderLineByMedicineName(t *testing.T) {
	api := newTestAPI(t)
	tx := order.NewMockTx(api.ctrl)
	pharm := api.token(t, auth.RolePharmacist)

	sup := &catalog.Supplier{ID: uuid.New(), Name: "Ibn Sina Pharma"}
	med := &catalog.Medicine{ID: uuid.New(), Name: "Panadol", InternationalBarcode: "6221000000017", UnitsPerPack: 10, Price: decimal.RequireFromString("25")}
	expiry := time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC)
	batch := &catalog.Batch{ID: uuid.New(), Barcode: "1234567890123456", ExpiryDate: expiry, MedicineID: med.ID, Medicine: med}

	api.orders.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().GetSupplier(gomock.Any(), sup.ID).Return(sup, nil)
	tx.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, o *order.Order) error {
		o.ID = uuid.New()
		o.CreatedAt = fixedNow

		return nil
	})
	tx.EXPECT().FindMedicine(gomock.Any(), "Panadol", "").Return(med, nil)
	tx.EXPECT().GetOrCreateBatch(gomock.Any(), med, expiry).Return(batch, nil)
	tx.EXPECT().CreateItem(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().AdjustStock(gomock.Any(), batch.ID, int64(25)).Return(int64(25), nil)
	tx.EXPECT().UpdateOrder(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil).AnyTimes()

	body := `{"supplier":"` + sup.ID.String() + `","items":[{"medicine":"Panadol","packs":2,"units":5,"expiry_date":"2027-05"}]}`

	rec := api.do(http.MethodPost, "/api/v1/orders", pharm, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"quantity":25`)

	rec = api.do(http.MethodPost, "/api/v1/orders", pharm, `{"supplier":"`+sup.ID.String()+`","items":[{"packs":1,"expiry_date":"2027-05"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items[0].medicine")
	assert.Contains(t, rec.Body.String(), "is required when international_barcode is missing")
}
