package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")
	ErrTokenIsNotAccess     = fmt.Errorf("токен не является access-токеном")

	// Авторизация
	ErrEmptyAuthHeader   = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader = fmt.Errorf("неверный формат заголовка авторизации")
	ErrUserNotFound      = fmt.Errorf("пользователь не найден в контексте")

	// Workflow
	ErrUnauthorized         = fmt.Errorf("действие недоступно для пользователя")
	ErrInvalidTransition    = fmt.Errorf("заявка уже обработана или действие недопустимо в текущем статусе")
	ErrSequenceExhausted    = fmt.Errorf("не удалось выделить уникальный номер заявки")
	ErrNotificationDispatch = fmt.Errorf("не удалось доставить уведомление")
	ErrPersistenceConflict  = fmt.Errorf("заявка была изменена параллельно")

	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrBadRequest = fmt.Errorf("неверный запрос")
)

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// HttpError - ошибка, которая уже знает свой HTTP-код и сообщение для клиента.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Context map[string]interface{}
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, ctx map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Context: ctx}
}

// ToHttpError переводит доменную ошибку в HttpError.
// Неизвестные ошибки возвращает как есть (nil, false).
func ToHttpError(err error) (*HttpError, bool) {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}

	var inputErr *InvalidInputError
	if errors.As(err, &inputErr) {
		return &HttpError{Code: http.StatusBadRequest, Message: inputErr.Message}, true
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return &HttpError{Code: http.StatusForbidden, Message: ErrUnauthorized.Error()}, true
	case errors.Is(err, ErrInvalidTransition):
		return &HttpError{Code: http.StatusConflict, Message: ErrInvalidTransition.Error()}, true
	case errors.Is(err, ErrPersistenceConflict):
		return &HttpError{Code: http.StatusConflict, Message: ErrPersistenceConflict.Error()}, true
	case errors.Is(err, ErrSequenceExhausted):
		return &HttpError{Code: http.StatusServiceUnavailable, Message: ErrSequenceExhausted.Error()}, true
	case errors.Is(err, ErrNotFound):
		return &HttpError{Code: http.StatusNotFound, Message: ErrNotFound.Error()}, true
	case errors.Is(err, ErrBadRequest):
		return &HttpError{Code: http.StatusBadRequest, Message: ErrBadRequest.Error()}, true
	case errors.Is(err, ErrEmptyAuthHeader),
		errors.Is(err, ErrInvalidAuthHeader),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidSigningMethod),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenIsNotAccess),
		errors.Is(err, ErrUserNotFound):
		return &HttpError{Code: http.StatusUnauthorized, Message: err.Error()}, true
	}
	return nil, false
}
