package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка несоответствия total_items и суммы количеств.
	ErrItemsCountMismatch = errors.New("order total_items does not match items quantity")
	// paid=true без paid_at или наоборот.
	ErrPaidStateInconsistent = errors.New("paid flag and paid_at disagree")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("unknown order status")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyPaid: повторное подтверждение оплаты уже оплаченного заказа.
	ErrOrderAlreadyPaid = errors.New("order already paid")
	// ErrProductsNotFound: каталог не вернул часть запрошенных товаров.
	ErrProductsNotFound = errors.New("products not found")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже занят запросом с тем же телом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound: ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом ключа идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// ErrorKind классифицирует отказы операций над заказами.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindRemoteDependency ErrorKind = "remote_dependency"
	KindPersistence      ErrorKind = "persistence"
)

// Маркеры для errors.Is: сопоставляются с *Error по виду отказа.
var (
	ErrValidation       = errors.New("validation failure")
	ErrNotFound         = errors.New("not found failure")
	ErrRemoteDependency = errors.New("remote dependency failure")
	ErrPersistence      = errors.New("persistence failure")
)

var kindMarkers = map[ErrorKind]error{
	KindValidation:       ErrValidation,
	KindNotFound:         ErrNotFound,
	KindRemoteDependency: ErrRemoteDependency,
	KindPersistence:      ErrPersistence,
}

// Error: единый конверт ошибки с кодом статуса и сообщением для клиента.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет писать errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	marker, ok := kindMarkers[e.Kind]
	return ok && marker == target
}

// NewValidationError создаёт отказ валидации (400).
func NewValidationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message, Err: err}
}

// NewNotFoundError создаёт отказ «не найдено» (404).
func NewNotFoundError(message string, err error) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message, Err: err}
}

// NewRemoteDependencyError создаёт отказ внешней зависимости (502).
func NewRemoteDependencyError(message string, err error) *Error {
	return &Error{Kind: KindRemoteDependency, Status: http.StatusBadGateway, Message: message, Err: err}
}

// NewPersistenceError создаёт отказ хранилища (500).
func NewPersistenceError(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// OrderNotFound формирует сообщение об отсутствии заказа.
func OrderNotFound(id string) *Error {
	return NewNotFoundError(fmt.Sprintf("Order with id #%s doesn't exist", id), ErrOrderNotFound)
}

// ProductsNotFound формирует отказ валидации с перечнем отсутствующих товаров.
func ProductsNotFound(ids []int64) *Error {
	return NewValidationError(fmt.Sprintf("Products not found: %v", ids), ErrProductsNotFound)
}

// AsFailure приводит любую ошибку к *Error.
// Неклассифицированные ошибки считаются отказом внешней зависимости.
func AsFailure(err error) *Error {
	if err == nil {
		return nil
	}
	var failure *Error
	if errors.As(err, &failure) {
		return failure
	}
	return NewRemoteDependencyError(err.Error(), err)
}

// KindOf возвращает вид отказа или пустую строку для nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsFailure(err).Kind
}
