package distributors

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendeo/vendeo-backend/api/responses"
	"github.com/vendeo/vendeo-backend/api/validators"
	internaldistributors "github.com/vendeo/vendeo-backend/internal/distributors"
	"github.com/vendeo/vendeo-backend/internal/qualification"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/pagination"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

const maxReferralCodeLen = 32

type registerRequest struct {
	UserID             uuid.UUID `json:"user_id" validate:"required"`
	ReferralCode       string    `json:"referral_code" validate:"required,max=32,referral_code"`
	ParentReferralCode *string   `json:"parent_referral_code" validate:"omitempty,max=32,referral_code"`
}

type reparentRequest struct {
	ParentReferralCode *string `json:"parent_referral_code" validate:"omitempty,max=32,referral_code"`
}

// Register enrolls a user in the MLM program, optionally under a sponsor code.
func Register(svc internaldistributors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "distributor service unavailable"))
			return
		}
		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internaldistributors.RegisterInput{
			UserID:             req.UserID,
			ReferralCode:       validators.SanitizeString(req.ReferralCode, maxReferralCodeLen),
			ParentReferralCode: sanitizeCode(req.ParentReferralCode),
		}
		dto, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// Reparent moves a distributor under another sponsor, or detaches it when no
// code is given.
func Reparent(svc internaldistributors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "distributor service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "distributorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reparentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Reparent(r.Context(), id, sanitizeCode(req.ParentReferralCode))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func Detail(svc internaldistributors.Service, logg *logger.Logger) http.HandlerFunc {
	return lookup(svc, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.Get(r.Context(), id)
	})
}

// Children lists direct recruits a page at a time (?limit=&cursor=).
func Children(svc internaldistributors.Service, logg *logger.Logger) http.HandlerFunc {
	return lookup(svc, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		return svc.DirectChildren(r.Context(), id, internaldistributors.ListParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
	})
}

// Subtree lists every descendant breadth-first with its depth below the origin.
func Subtree(svc internaldistributors.Service, logg *logger.Logger) http.HandlerFunc {
	return lookup(svc, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.FullSubtree(r.Context(), id)
	})
}

// Ascendants lists the sponsor chain from the distributor up to the root.
func Ascendants(svc internaldistributors.Service, logg *logger.Logger) http.HandlerFunc {
	return lookup(svc, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		return svc.AscendantChain(r.Context(), id)
	})
}

// Qualification evaluates the distributor's rank for ?month=YYYY-MM, the
// current month by default.
func Qualification(svc qualification.Service, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "qualification service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "distributorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		month, err := validators.ParseQueryMonth(r, "month", types.MonthKeyOf(now()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ForDistributor(r.Context(), id, month.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func lookup(svc internaldistributors.Service, logg *logger.Logger, fn func(*http.Request, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "distributor service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "distributorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := fn(r, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func sanitizeCode(code *string) *string {
	if code == nil {
		return nil
	}
	clean := validators.SanitizeString(*code, maxReferralCodeLen)
	return &clean
}
