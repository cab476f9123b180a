package cvd

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/api/responses"
	"github.com/vendeo/vendeo-backend/api/validators"
	internalcvd "github.com/vendeo/vendeo-backend/internal/cvd"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

type tierView struct {
	Index   int                                   `json:"index"`
	Label   string                                `json:"label"`
	Min     int                                   `json:"min_points"`
	Max     *int                                  `json:"max_points"`
	Amounts map[enums.ProductType]decimal.Decimal `json:"amounts"`
}

type simulateRequest struct {
	Sales []string `json:"sales" validate:"max=10000"`
}

// Tiers returns the CVD grid. The last tier reports a null upper bound.
func Tiers(svc internalcvd.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cvd service unavailable"))
			return
		}
		tiers := svc.Tiers()
		views := make([]tierView, 0, len(tiers))
		for _, tier := range tiers {
			view := tierView{
				Index:   tier.Index,
				Label:   tier.Label,
				Min:     tier.Min,
				Amounts: tier.Amounts(),
			}
			if tier.Max != internalcvd.Unbounded {
				upper := tier.Max
				view.Max = &upper
			}
			views = append(views, view)
		}
		responses.WriteSuccess(w, views)
	}
}

// Simulate runs the monthly calculator over an ordered list of product types.
// Unknown product types are accepted and earn nothing.
func Simulate(svc internalcvd.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cvd service unavailable"))
			return
		}
		var req simulateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products := make([]enums.ProductType, 0, len(req.Sales))
		for _, raw := range req.Sales {
			products = append(products, enums.ProductType(validators.SanitizeString(raw, 64)))
		}
		responses.WriteSuccess(w, svc.Simulate(products))
	}
}

// SellerMonth computes the CVD commission for a seller's stored sales.
func SellerMonth(svc internalcvd.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cvd service unavailable"))
			return
		}
		sellerID, err := validators.ParseUUIDParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		month, err := validators.ParseMonthParam(r, "month")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SellerMonth(r.Context(), sellerID, month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
