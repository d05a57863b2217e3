package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/game"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
)

const (
	errorCodeInvalidInput = "invalid_input"
	errorCodeNotFound     = "not_found"
	errorCodeLocked       = "account_locked"
	errorCodeAuthFailed   = "auth_failed"
	errorCodeBanned       = "banned"
	errorCodeForbidden    = "forbidden"
	errorCodeConflict     = "conflict"
	errorCodeNotForSale   = "not_for_sale"
	errorCodeBalanceLimit = "balance_limit"
	errorCodeTimeout      = "timeout"
	errorCodePersistence  = "persistence_error"
	errorCodeInternal     = "internal_error"
)

type httpError struct {
	status  int
	code    string
	message string
}

// mapError translates a service error into a status and a stable code.
func mapError(source error) httpError {
	switch {
	case errors.Is(source, ledger.ErrInvalidPIN),
		errors.Is(source, ledger.ErrInvalidAccountType),
		errors.Is(source, game.ErrInvalidInput):
		return httpError{http.StatusBadRequest, errorCodeInvalidInput, source.Error()}
	case errors.Is(source, ledger.ErrNotFound):
		return httpError{http.StatusNotFound, errorCodeNotFound, "not found"}
	case errors.Is(source, ledger.ErrLocked):
		return httpError{http.StatusLocked, errorCodeLocked, "account locked"}
	case errors.Is(source, ledger.ErrAuthFailed):
		return httpError{http.StatusUnauthorized, errorCodeAuthFailed, "authentication failed"}
	case errors.Is(source, game.ErrBanned):
		return httpError{http.StatusForbidden, errorCodeBanned, source.Error()}
	case errors.Is(source, game.ErrNotOwner):
		return httpError{http.StatusForbidden, errorCodeForbidden, "not the owner"}
	case errors.Is(source, game.ErrNotForSale):
		return httpError{http.StatusConflict, errorCodeNotForSale, "property not for sale"}
	case errors.Is(source, ledger.ErrInvalidBalance):
		return httpError{http.StatusUnprocessableEntity, errorCodeBalanceLimit, "balance limit exceeded"}
	case errors.Is(source, ledger.ErrConflict), errors.Is(source, game.ErrInactiveJob):
		return httpError{http.StatusConflict, errorCodeConflict, "conflict"}
	case errors.Is(source, context.DeadlineExceeded):
		return httpError{http.StatusGatewayTimeout, errorCodeTimeout, "request timed out"}
	case errors.Is(source, ledger.ErrPersistence):
		return httpError{http.StatusServiceUnavailable, errorCodePersistence, "storage unavailable"}
	default:
		return httpError{http.StatusInternalServerError, errorCodeInternal, "internal error"}
	}
}
