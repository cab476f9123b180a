package cvd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalcvd "github.com/vendeo/vendeo-backend/internal/cvd"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

type stubService struct {
	simulated []enums.ProductType
	month     *internalcvd.SellerMonthResult
	err       error
}

func (s *stubService) Tiers() []internalcvd.CommissionTier {
	return internalcvd.DefaultTierTable().Tiers()
}

func (s *stubService) Simulate(products []enums.ProductType) internalcvd.MonthlyCommissionResult {
	s.simulated = products
	return internalcvd.DefaultTierTable().CalculateMonth(nil)
}

func (s *stubService) SellerMonth(_ context.Context, sellerID uuid.UUID, month types.MonthKey) (*internalcvd.SellerMonthResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &internalcvd.SellerMonthResult{SellerID: sellerID, Month: month}, nil
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestTiersReportsOpenUpperBound(t *testing.T) {
	rec := httptest.NewRecorder()
	Tiers(&stubService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cvd/tiers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []struct {
			Index int  `json:"index"`
			Min   int  `json:"min_points"`
			Max   *int `json:"max_points"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NotEmpty(t, envelope.Data)
	assert.Equal(t, 0, envelope.Data[0].Min)
	require.NotNil(t, envelope.Data[0].Max)
	assert.Nil(t, envelope.Data[len(envelope.Data)-1].Max)
}

func TestSimulateKeepsUnknownProducts(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cvd/simulate", strings.NewReader(`{"sales":["freebox_pop"," mystery "]}`))
	rec := httptest.NewRecorder()
	Simulate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []enums.ProductType{enums.ProductTypeFreeboxPop, "mystery"}, svc.simulated)
}

func TestSimulateRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cvd/simulate", strings.NewReader(`{"items":[]}`))
	rec := httptest.NewRecorder()
	Simulate(&stubService{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellerMonth(t *testing.T) {
	sellerID := uuid.New()
	req := withParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{
		"sellerId": sellerID.String(),
		"month":    "2024-05",
	})
	rec := httptest.NewRecorder()
	SellerMonth(&stubService{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			SellerID uuid.UUID `json:"seller_id"`
			Month    string    `json:"month"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, sellerID, envelope.Data.SellerID)
	assert.Equal(t, "2024-05", envelope.Data.Month)
}

func TestSellerMonthErrors(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]string
		svc    *stubService
		status int
	}{
		{"bad seller", map[string]string{"sellerId": "x", "month": "2024-05"}, &stubService{}, http.StatusBadRequest},
		{"bad month", map[string]string{"sellerId": uuid.NewString(), "month": "2024-5"}, &stubService{}, http.StatusBadRequest},
		{"missing seller", map[string]string{"sellerId": uuid.NewString(), "month": "2024-05"},
			&stubService{err: pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")}, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		SellerMonth(tc.svc, nil).ServeHTTP(rec, withParams(httptest.NewRequest(http.MethodGet, "/", nil), tc.params))
		assert.Equal(t, tc.status, rec.Code, tc.name)
	}
}
