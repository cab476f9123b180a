package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

// clientMessageCodes are the codes whose own message is safe to show the
// caller. Every other code answers with its generic public message.
var clientMessageCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:    true,
	pkgerrors.CodeNotFound:      true,
	pkgerrors.CodeConflict:      true,
	pkgerrors.CodeStateConflict: true,
	pkgerrors.CodeIdempotency:   true,
	pkgerrors.CodeInFlight:      true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError renders err as an ErrorEnvelope. Untyped errors become
// INTERNAL_ERROR; their text is logged, never sent.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		if err == nil {
			err = errors.New("nil error written as response")
		}
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	code := typed.Code()
	meta := code.Metadata()

	apiErr := APIError{Code: string(code), Message: meta.PublicMessage, Retryable: meta.Retryable}
	if msg := typed.Message(); msg != "" && clientMessageCodes[code] {
		apiErr.Message = msg
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	ctx = logg.WithFields(ctx, pkgerrors.LogFields(err))
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
	} else {
		logg.Warn(ctx, "request.rejected")
	}

	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("encode response body")
	}
}
