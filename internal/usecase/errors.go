package usecase

import (
	"errors"
	"fmt"
)

// HTTPErrorはステータスをそのまま運ぶエラー。handlerでそのまま返す。
type HTTPError struct {
	Status  int
	Message string
	// レスポンスのdetailに出す補足（任意）
	Detail any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func NewHTTPErrorWithDetail(status int, message string, detail any) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Detail:  detail,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
