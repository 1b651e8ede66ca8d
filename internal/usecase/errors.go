package usecase

import (
	"errors"
	"fmt"
)

// 種別。handlerでHTTPステータスに変換する。
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")

	ErrProductNotFound       = errors.New("product not found")
	ErrDuplicateSubscription = errors.New("already subscribed")
	ErrProductInStock        = errors.New("product is in stock")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

// Kindは上の種別のどれか。Causeは内部エラー（利用者には出さない）。
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg = e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// 利用者向けのメッセージ
func (e *Error) PublicMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func validation(message string) error {
	return newError(ErrValidation, message)
}

func internal(cause error) error {
	return &Error{Kind: ErrInternal, Message: "db error", Cause: cause}
}

func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// 在庫不足。どの商品がいくつ足りないかを返す。
type InsufficientStockError struct {
	ProductID int64 `json:"product_id"`
	Available int64 `json:"available"`
	Requested int64 `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var e *InsufficientStockError
	ok := errors.As(err, &e)
	return e, ok
}
