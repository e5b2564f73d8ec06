// Package errors define el catálogo de errores HTTP de la aplicación.
package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa original, para logs, no se expone al cliente
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail agrega detalle al error. Devuelve una COPIA para no mutar las
// variables globales del catálogo.
func (e *AppError) WithDetail(detail string) *AppError {
	out := *e
	out.Detail = detail
	return &out
}

// WithCause agrega el error original (causa). Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	out := *e
	out.Err = err
	return &out
}

// FromError convierte un error genérico en AppError. Lo que no matchea el
// catálogo es un error interno: la causa queda para el log, no para el cliente.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// =========================================================================
// CATÁLOGO
// =========================================================================

var (
	// 400
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Faltan campos requeridos en la solicitud.",
		HTTPStatus: http.StatusBadRequest,
	}
	// La validez pedida excede el máximo: error de política, nunca se recorta
	// en silencio.
	ErrValidityTooLong = &AppError{
		Code:       "VALIDITY_TOO_LONG",
		Message:    "La validez solicitada excede el máximo permitido.",
		HTTPStatus: http.StatusBadRequest,
	}

	// 401 — toda invalidez de credencial responde igual: el cliente no
	// distingue malformado de expirado ni de revocado.
	ErrInvalidToken = &AppError{
		Code:       "INVALID_TOKEN",
		Message:    "El token es inválido.",
		HTTPStatus: http.StatusUnauthorized,
	}
	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// 403
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tenés permiso para realizar esta operación.",
		HTTPStatus: http.StatusForbidden,
	}

	// 404
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	// 409
	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "El recurso ya existe.",
		HTTPStatus: http.StatusConflict,
	}

	// 429
	ErrTooManyRequests = &AppError{
		Code:       "TOO_MANY_REQUESTS",
		Message:    "Demasiados intentos. Probá de nuevo más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	// 500
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Error interno del servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}
)
