package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeStockUpdateFailed  = "STOCK_UPDATE_FAILED"
	ErrCodePriceMismatch      = "PRICE_MISMATCH"
	ErrCodeMinimumAmount      = "MINIMUM_AMOUNT"
	ErrCodeDuplicateOrder     = "DUPLICATE_ORDER"
	ErrCodePaymentError       = "PAYMENT_ERROR"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodePaymentExpired     = "PAYMENT_EXPIRED"
	ErrCodeAlreadyRefunded    = "ALREADY_REFUNDED"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

func NewValidationError(msg string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewProductUnavailableError(productName string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeProductUnavailable,
		Message:    fmt.Sprintf("%s is currently unavailable", productName),
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewInsufficientStockError(productName string, requested, available int) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInsufficientStock,
		Message:    fmt.Sprintf("only %d of %s left, %d requested", available, productName, requested),
		HTTPStatus: http.StatusConflict,
	}
}

func NewStockUpdateFailedError(productName string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeStockUpdateFailed,
		Message:    fmt.Sprintf("could not reserve stock for %s, please try again", productName),
		HTTPStatus: http.StatusConflict,
	}
}

func NewPriceMismatchError(productName string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePriceMismatch,
		Message:    fmt.Sprintf("the price of %s has changed, please refresh and try again", productName),
		HTTPStatus: http.StatusConflict,
	}
}

func NewMinimumAmountError(minimum int64) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeMinimumAmount,
		Message:    fmt.Sprintf("online payments require a minimum of %.2f", float64(minimum)/100),
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewDuplicateOrderError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeDuplicateOrder,
		Message:    "an order with this reference has already been placed",
		HTTPStatus: http.StatusConflict,
	}
}

func NewPaymentUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePaymentError,
		Message:    "online payments are temporarily unavailable, please pay by cash or wallet",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInvalidTransitionError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidTransition,
		Message:    err.Error(),
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewPaymentExpiredError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodePaymentExpired,
		Message:    "the payment window for this order has expired",
		HTTPStatus: http.StatusConflict,
	}
}

func NewAlreadyRefundedError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAlreadyRefunded,
		Message:    "this order has already been cancelled or refunded",
		HTTPStatus: http.StatusConflict,
	}
}

func NewInsufficientFundsError(balance, required int64) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInsufficientFunds,
		Message:    fmt.Sprintf("wallet balance %.2f is less than %.2f", float64(balance)/100, float64(required)/100),
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewNotFoundError(resource string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

func NewForbiddenError(msg string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// ToHTTPStatus maps any error to a response status. Unrecognized errors are
// treated as internal.
func ToHTTPStatus(err error) int {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// ToErrorCode maps any error to a machine-readable code.
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}
	return ErrCodeInternal
}
