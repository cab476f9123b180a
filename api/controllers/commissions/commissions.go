package commissions

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/api/responses"
	"github.com/vendeo/vendeo-backend/api/validators"
	internalcommissions "github.com/vendeo/vendeo-backend/internal/commissions"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

type propagateRequest struct {
	ClientID    uuid.UUID       `json:"client_id" validate:"required"`
	ProductType string          `json:"product_type" validate:"required,max=64"`
	SaleAmount  decimal.Decimal `json:"sale_amount"`
}

// Propagate records the MLM commissions owed for one client sale.
func Propagate(svc internalcommissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		var req propagateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txs, err := svc.Propagate(r.Context(), internalcommissions.PropagateInput{
			ClientID:    req.ClientID,
			ProductType: enums.ProductType(validators.SanitizeString(req.ProductType, 64)),
			SaleAmount:  req.SaleAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if txs == nil {
			txs = []internalcommissions.TransactionDTO{}
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txs)
	}
}

// Monthly returns a distributor's commission statement for one month.
func Monthly(svc internalcommissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "distributorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statement, err := svc.ListMonthly(r.Context(), id, chi.URLParam(r, "month"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statement)
	}
}

// Validate moves the month's calculee rows to validee.
func Validate(svc internalcommissions.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, id uuid.UUID, month string) (*internalcommissions.TransitionResult, error) {
		return svc.ValidateMonthly(ctx, id, month)
	})
}

// Pay moves the month's validee rows to payee.
func Pay(svc internalcommissions.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(ctx context.Context, id uuid.UUID, month string) (*internalcommissions.TransitionResult, error) {
		return svc.MarkMonthlyPaid(ctx, id, month)
	})
}

type transitionFunc func(ctx context.Context, distributorID uuid.UUID, month string) (*internalcommissions.TransitionResult, error)

func transition(svc internalcommissions.Service, logg *logger.Logger, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "distributorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := fn(r.Context(), id, chi.URLParam(r, "month"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
