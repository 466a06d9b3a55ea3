package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/barcode"
	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newService(t *testing.T, setup func(m *catalog.MockRepository), opts ...catalog.Option) *catalog.Service {
	t.Helper()

	ctrl := gomock.NewController(t)
	repo := catalog.NewMockRepository(ctrl)

	if setup != nil {
		setup(repo)
	}

	logger, _ := test.NewNullLogger()
	opts = append([]catalog.Option{catalog.WithClock(func() time.Time { return fixedNow })}, opts...)

	return catalog.NewService(repo, logger, opts...)
}

func validMedicineParams() catalog.MedicineParams {
	return catalog.MedicineParams{
		InternationalBarcode: "6221000000017",
		Name:                 "Panadol",
		ActiveIngredientID:   uuid.New(),
		CategoryID:           uuid.New(),
		ManufacturerID:       uuid.New(),
		UnitsPerPack:         10,
		Price:                dec("25.50"),
	}
}

func TestService_CreateMedicine(t *testing.T) {
	type testCase struct {
		name      string
		params    func() catalog.MedicineParams
		setupMock func(m *catalog.MockRepository)
		wantErr   error
		wantField string
	}

	tests := []testCase{
		{
			name:   "Success",
			params: validMedicineParams,
			setupMock: func(m *catalog.MockRepository) {
				id := uuid.New()
				m.EXPECT().
					CreateMedicine(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, med *catalog.Medicine) error {
						med.ID = id
						return nil
					})
				m.EXPECT().
					GetMedicine(gomock.Any(), id).
					Return(&catalog.Medicine{ID: id, Name: "Panadol", UnitsPerPack: 10, Price: dec("25.50")}, nil)
			},
		},
		{
			name: "ShortBarcode",
			params: func() catalog.MedicineParams {
				p := validMedicineParams()
				p.InternationalBarcode = "622100000001"
				return p
			},
			wantErr:   apperr.ErrValidation,
			wantField: "international_barcode",
		},
		{
			name: "NonDigitBarcode",
			params: func() catalog.MedicineParams {
				p := validMedicineParams()
				p.InternationalBarcode = "62210000000A7"
				return p
			},
			wantErr:   apperr.ErrValidation,
			wantField: "international_barcode",
		},
		{
			name: "LongName",
			params: func() catalog.MedicineParams {
				p := validMedicineParams()
				p.Name = strings.Repeat("x", 51)
				return p
			},
			wantErr:   apperr.ErrValidation,
			wantField: "name",
		},
		{
			name: "ZeroUnitsPerPack",
			params: func() catalog.MedicineParams {
				p := validMedicineParams()
				p.UnitsPerPack = 0
				return p
			},
			wantErr:   apperr.ErrValidation,
			wantField: "units_per_pack",
		},
		{
			name: "PriceWithThreePlaces",
			params: func() catalog.MedicineParams {
				p := validMedicineParams()
				p.Price = dec("1.005")
				return p
			},
			wantErr:   apperr.ErrValidation,
			wantField: "price",
		},
		{
			name: "DuplicateName",
			params: validMedicineParams,
			setupMock: func(m *catalog.MockRepository) {
				m.EXPECT().
					CreateMedicine(gomock.Any(), gomock.Any()).
					Return(apperr.Conflict("medicine name %q", "Panadol"))
			},
			wantErr: apperr.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, tt.setupMock)

			got, err := svc.CreateMedicine(context.Background(), tt.params())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				if tt.wantField != "" {
					assert.Contains(t, apperr.Fields(err), tt.wantField)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Panadol", got.Name)
		})
	}
}

func TestService_UpdateMedicine_KeepsBarcode(t *testing.T) {
	id := uuid.New()
	existing := &catalog.Medicine{
		ID:                   id,
		InternationalBarcode: "6221000000017",
		Name:                 "Panadol",
		ActiveIngredientID:   uuid.New(),
		CategoryID:           uuid.New(),
		ManufacturerID:       uuid.New(),
		UnitsPerPack:         10,
		Price:                dec("25.50"),
	}

	svc := newService(t, func(m *catalog.MockRepository) {
		m.EXPECT().GetMedicine(gomock.Any(), id).Return(existing, nil).Times(2)
		m.EXPECT().
			UpdateMedicine(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, med *catalog.Medicine) error {
				assert.Equal(t, "6221000000017", med.InternationalBarcode)
				assert.Equal(t, "Panadol Extra", med.Name)
				assert.True(t, dec("30").Equal(med.Price))
				return nil
			})
	})

	_, err := svc.UpdateMedicine(context.Background(), id, catalog.MedicineUpdate{
		Name:  new("Panadol Extra"),
		Price: new(dec("30")),
	})
	require.NoError(t, err)
}

func TestService_CreateBatch(t *testing.T) {
	medicineID := uuid.New()
	med := &catalog.Medicine{ID: medicineID, Name: "Panadol", UnitsPerPack: 10, Price: dec("25.50")}

	t.Run("RetriesBarcodeCollision", func(t *testing.T) {
		codes := []string{"1111111111111111", "2222222222222222"}
		gen := func() (string, error) {
			c := codes[0]
			codes = codes[1:]

			return c, nil
		}

		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().GetMedicine(gomock.Any(), medicineID).Return(med, nil)
			gomock.InOrder(
				m.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(barcode.ErrTaken),
				m.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(nil),
			)
		}, catalog.WithBarcodeGenerator(gen))

		b, err := svc.CreateBatch(context.Background(), medicineID, catalog.BatchParams{
			ExpiryMonth: "2027-05",
			Packs:       2,
			Units:       5,
		})
		require.NoError(t, err)
		assert.Equal(t, "2222222222222222", b.Barcode)
		assert.Equal(t, int64(25), b.StockUnits)
		assert.Equal(t, time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC), b.ExpiryDate)
	})

	t.Run("CurrentMonthRejected", func(t *testing.T) {
		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().GetMedicine(gomock.Any(), medicineID).Return(med, nil)
		})

		_, err := svc.CreateBatch(context.Background(), medicineID, catalog.BatchParams{ExpiryMonth: "2026-10", Packs: 1})
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Contains(t, apperr.Fields(err), "expiry_date")
	})

	t.Run("DuplicateExpiry", func(t *testing.T) {
		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().GetMedicine(gomock.Any(), medicineID).Return(med, nil)
			m.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(apperr.Conflict("batch for 2027-05"))
		})

		_, err := svc.CreateBatch(context.Background(), medicineID, catalog.BatchParams{ExpiryMonth: "2027-05", Packs: 1})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("UnknownMedicine", func(t *testing.T) {
		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().GetMedicine(gomock.Any(), medicineID).Return(nil, apperr.NotFound("medicine"))
		})

		_, err := svc.CreateBatch(context.Background(), medicineID, catalog.BatchParams{ExpiryMonth: "2027-05", Packs: 1})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestService_UpdateBatch(t *testing.T) {
	medicineID := uuid.New()
	batchID := uuid.New()
	batch := func() *catalog.Batch {
		return &catalog.Batch{
			ID:         batchID,
			Barcode:    "1234567890123456",
			MedicineID: medicineID,
			StockUnits: 40,
			Medicine:   &catalog.Medicine{ID: medicineID, UnitsPerPack: 10},
		}
	}

	t.Run("Recounts", func(t *testing.T) {
		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().GetBatch(gomock.Any(), batchID).Return(batch(), nil)
			m.EXPECT().SetBatchStock(gomock.Any(), batchID, int64(13)).Return(nil)
		})

		b, err := svc.UpdateBatch(context.Background(), medicineID, batchID, catalog.BatchUpdate{Packs: new(int64(1)), Units: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(13), b.StockUnits)
	})

	t.Run("NoPacksIsNoop", func(t *testing.T) {
		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().GetBatch(gomock.Any(), batchID).Return(batch(), nil)
		})

		b, err := svc.UpdateBatch(context.Background(), medicineID, batchID, catalog.BatchUpdate{Units: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(40), b.StockUnits)
	})

	t.Run("OtherMedicine", func(t *testing.T) {
		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().GetBatch(gomock.Any(), batchID).Return(batch(), nil)
		})

		_, err := svc.UpdateBatch(context.Background(), uuid.New(), batchID, catalog.BatchUpdate{Packs: new(int64(1))})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestService_CreateManufacturer(t *testing.T) {
	t.Run("NormalizesCountryAndPhone", func(t *testing.T) {
		svc := newService(t, func(m *catalog.MockRepository) {
			m.EXPECT().CreateManufacturer(gomock.Any(), gomock.Any()).Return(nil)
		})

		got, err := svc.CreateManufacturer(context.Background(), catalog.ManufacturerParams{
			Name:        "Pharco",
			Country:     "eg",
			PhoneNumber: "01001234567",
			Website:     "https://pharco.example",
		})
		require.NoError(t, err)
		assert.Equal(t, "EG", got.Country)
		assert.Equal(t, "+201001234567", got.PhoneNumber)
	})

	t.Run("Invalid", func(t *testing.T) {
		svc := newService(t, nil)

		_, err := svc.CreateManufacturer(context.Background(), catalog.ManufacturerParams{
			Name:        "",
			Country:     "E1",
			PhoneNumber: "12",
			Website:     "ftp://pharco.example",
		})
		require.ErrorIs(t, err, apperr.ErrValidation)

		fields := apperr.Fields(err)
		for _, f := range []string{"name", "country", "phone_number", "website"} {
			assert.Contains(t, fields, f)
		}
	})
}

func TestService_CreateCategory_UnknownParent(t *testing.T) {
	parent := uuid.New()

	svc := newService(t, func(m *catalog.MockRepository) {
		m.EXPECT().GetCategory(gomock.Any(), parent).Return(nil, apperr.NotFound("category"))
	})

	_, err := svc.CreateCategory(context.Background(), catalog.CategoryParams{Name: "Analgesics", ParentID: &parent})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.Fields(err), "parent")
}

func TestService_Import(t *testing.T) {
	row := func(line int, name, code string) catalog.ImportRow {
		return catalog.ImportRow{
			Line:                 line,
			Name:                 name,
			InternationalBarcode: code,
			ActiveIngredient:     "Paracetamol",
			Category:             "Analgesics",
			Manufacturer:         "GSK",
			ManufacturerCountry:  "GB",
			UnitsPerPack:         10,
			Price:                dec("25.50"),
		}
	}

	broken := row(4, "Broken", "6221000000048")
	broken.Problem = "price: not a number"

	noCountry := row(5, "Stateless", "6221000000055")
	noCountry.ManufacturerCountry = ""

	rows := []catalog.ImportRow{
		row(2, "Panadol", "6221000000017"),
		row(3, "Existing", "6221000000024"),
		broken,
		noCountry,
	}

	svc := newService(t, func(m *catalog.MockRepository) {
		m.EXPECT().EnsureActiveIngredient(gomock.Any(), "Paracetamol").Return(uuid.New(), nil).Times(2)
		m.EXPECT().EnsureCategory(gomock.Any(), "Analgesics").Return(uuid.New(), nil).Times(2)
		m.EXPECT().EnsureManufacturer(gomock.Any(), "GSK", "GB").Return(uuid.New(), nil).Times(2)
		m.EXPECT().
			CreateMedicine(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, med *catalog.Medicine) error {
				if med.Name == "Existing" {
					return apperr.Conflict("medicine name %q", med.Name)
				}

				med.ID = uuid.New()

				return nil
			}).Times(2)
		m.EXPECT().
			GetMedicine(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, id uuid.UUID) (*catalog.Medicine, error) {
				return &catalog.Medicine{ID: id, Name: "Panadol"}, nil
			})
	})

	res, err := svc.Import(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	assert.Equal(t, "Panadol", res.Created[0].Name)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 3, res.Skipped[0].Line)
	require.Len(t, res.Invalid, 2)
	assert.Equal(t, 4, res.Invalid[0].Line)
	assert.Equal(t, 5, res.Invalid[1].Line)
}

func TestService_Import_RepositoryFailureAborts(t *testing.T) {
	boom := errors.New("db down")

	svc := newService(t, func(m *catalog.MockRepository) {
		m.EXPECT().EnsureActiveIngredient(gomock.Any(), gomock.Any()).Return(uuid.Nil, boom)
	})

	_, err := svc.Import(context.Background(), []catalog.ImportRow{{
		Line:                 2,
		Name:                 "Panadol",
		InternationalBarcode: "6221000000017",
		ActiveIngredient:     "Paracetamol",
		Category:             "Analgesics",
		Manufacturer:         "GSK",
		ManufacturerCountry:  "GB",
		UnitsPerPack:         10,
		Price:                dec("1"),
	}})
	assert.ErrorIs(t, err, boom)
}

func TestService_SimilarMedicines(t *testing.T) {
	med := &catalog.Medicine{ID: uuid.New(), Name: "Panadol", ActiveIngredientID: uuid.New(), CategoryID: uuid.New()}
	similar := []*catalog.Medicine{{ID: uuid.New(), Name: "Adol", ActiveIngredientID: med.ActiveIngredientID, CategoryID: med.CategoryID}}

	svc := newService(t, func(m *catalog.MockRepository) {
		m.EXPECT().GetMedicine(gomock.Any(), med.ID).Return(med, nil)
		m.EXPECT().ListSimilarMedicines(gomock.Any(), med).Return(similar, nil)
	})

	got, err := svc.SimilarMedicines(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Equal(t, similar, got)

	missing := uuid.New()
	svc = newService(t, func(m *catalog.MockRepository) {
		m.EXPECT().GetMedicine(gomock.Any(), missing).Return(nil, apperr.NotFound("medicine"))
	})

	_, err = svc.SimilarMedicines(context.Background(), missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_DeleteMedicine(t *testing.T) {
	id := uuid.New()

	svc := newService(t, func(m *catalog.MockRepository) {
		m.EXPECT().DeleteMedicine(gomock.Any(), id).Return(apperr.Conflict("medicine has batches referenced by orders or invoices"))
	})

	assert.ErrorIs(t, svc.DeleteMedicine(context.Background(), id), apperr.ErrConflict)
}
