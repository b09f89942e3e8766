package dto

import apperrors "github.com/tabdb/tabdb/internal/errors"

// ErrorDetails is the inner error payload.
type ErrorDetails struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// ErrorResponse is the JSON shape of every error the API returns.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}
