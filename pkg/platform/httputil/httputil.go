package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "purchasegate/pkg/domain-errors"
)

// ErrorResponse is the JSON body of every failed request. Error is a stable
// machine identifier; clients localize it, the service never sends
// parent-facing copy.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // headers already sent
}

// WriteError translates a domain error into an HTTP status and error body.
// Anything without a domain code is reported as internal_error without
// leaking its message.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		resp := ErrorResponse{Error: DomainCodeToHTTPCode(domainErr.Code)}
		if domainErr.Code != dErrors.CodeInternal {
			resp.Description = domainErr.Message
		}
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), resp)
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound, dErrors.CodeTokenNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeConsentRequired, dErrors.CodeContentRestricted, dErrors.CodeApprovalDenied:
		return http.StatusForbidden
	case dErrors.CodeConflict, dErrors.CodeTokenAlreadyResolved, dErrors.CodeNotApproved,
		dErrors.CodeAlreadyRedeemed, dErrors.CodeAlreadyOwned, dErrors.CodeDuplicatePurchase:
		return http.StatusConflict
	case dErrors.CodeTokenExpired:
		return http.StatusGone
	case dErrors.CodeSpendingLimitExceeded, dErrors.CodeRefundWindowExpired, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodePaymentFailed:
		return http.StatusPaymentRequired
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the error identifier
// in the response body. Purchase outcomes keep their domain names.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeInvariantViolation, dErrors.CodeInternal, "":
		return "internal_error"
	case dErrors.CodeTimeout:
		return "upstream_timeout"
	default:
		return string(code)
	}
}
