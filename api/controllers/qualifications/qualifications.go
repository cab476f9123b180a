package qualifications

import (
	"net/http"

	"github.com/vendeo/vendeo-backend/api/responses"
	"github.com/vendeo/vendeo-backend/api/validators"
	"github.com/vendeo/vendeo-backend/internal/qualification"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

// Evaluate runs the level evaluator on caller-supplied metrics.
func Evaluate(svc qualification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "qualification service unavailable"))
			return
		}
		var metrics qualification.Metrics
		if err := validators.DecodeJSONBody(r, &metrics); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.Evaluate(metrics))
	}
}
