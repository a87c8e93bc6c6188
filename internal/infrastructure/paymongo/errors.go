package paymongo

import (
	"errors"
	"fmt"
	"strings"
)

// GatewayError is a non-2xx response from the payment provider.
type GatewayError struct {
	Code       string
	Message    string
	StatusCode int
}

type gatewayErrorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

// IsRetryable reports whether the request may be retried. Only transport and
// provider-side failures qualify; application rejections never do.
func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

func (r gatewayErrorResponse) toError(statusCode int) *GatewayError {
	if len(r.Errors) == 0 {
		return &GatewayError{Code: "unknown", Message: "unparseable error body", StatusCode: statusCode}
	}
	codes := make([]string, 0, len(r.Errors))
	details := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, e.Code)
		details = append(details, e.Detail)
	}
	return &GatewayError{
		Code:       codes[0],
		Message:    strings.Join(details, "; "),
		StatusCode: statusCode,
	}
}
