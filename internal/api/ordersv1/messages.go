// Package ordersv1 описывает публичный gRPC-контракт сервиса заказов.
// Сообщения передаются JSON-кодеком grpcjson.
package ordersv1

// CreateOrderItem: позиция запроса на создание заказа.
type CreateOrderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequest struct {
	Items []CreateOrderItem `json:"items"`
}

// PaymentSession: ответ платёжного провайдера.
type PaymentSession struct {
	URL        string `json:"url"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type CreateOrderResponse struct {
	Order          Order          `json:"order"`
	PaymentSession PaymentSession `json:"paymentSession"`
}

type OrderItem struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderReceipt struct {
	ID         string `json:"id"`
	ReceiptURL string `json:"receiptUrl"`
	CreatedAt  string `json:"createdAt"`
}

type Order struct {
	ID               string        `json:"id"`
	TotalAmount      string        `json:"totalAmount"`
	TotalItems       int           `json:"totalItems"`
	Status           string        `json:"status"`
	Paid             bool          `json:"paid"`
	PaidAt           string        `json:"paidAt,omitempty"`
	ProviderChargeID string        `json:"providerChargeId,omitempty"`
	CreatedAt        string        `json:"createdAt"`
	UpdatedAt        string        `json:"updatedAt"`
	Items            []OrderItem   `json:"items,omitempty"`
	Receipt          *OrderReceipt `json:"receipt,omitempty"`
}

// FindAllOrdersRequest: параметры пагинации. Нулевые значения заменяются значениями по умолчанию.
type FindAllOrdersRequest struct {
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Status string `json:"status,omitempty"`
}

type PageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

type FindAllOrdersResponse struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}

type FindOneOrderRequest struct {
	ID string `json:"id"`
}

type ChangeOrderStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PaymentSucceededRequest: подтверждение оплаты от платёжного сервиса.
type PaymentSucceededRequest struct {
	ProviderPaymentID string `json:"providerPaymentId"`
	OrderID           string `json:"orderId"`
	ReceiptURL        string `json:"receiptUrl"`
}

type Empty struct{}
