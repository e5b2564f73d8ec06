package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/token"
)

// errorResponse controla exactamente qué campos viajan al cliente.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError traduce cualquier error de las capas de abajo a la respuesta
// HTTP del catálogo. Los sentinelas de dominio se mapean acá, en un solo
// lugar; los 500 loguean la causa antes de responder el mensaje genérico.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := translate(err)

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.From(r.Context()).Error("error interno respondiendo request",
			logger.Path(r.URL.Path), logger.Err(err))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

func translate(err error) *AppError {
	switch {
	case errors.Is(err, token.ErrValidityTooLong):
		return ErrValidityTooLong
	case errors.Is(err, token.ErrInvalidToken):
		return ErrInvalidToken
	case errors.Is(err, core.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, core.ErrConflict):
		return ErrConflict
	case errors.Is(err, core.ErrInvalid):
		return ErrBadRequest
	default:
		return FromError(err)
	}
}
