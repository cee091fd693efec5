package payment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/orders/internal/api/paymentsv1"
	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// DefaultTimeout ограничивает создание платёжной сессии.
const DefaultTimeout = 5 * time.Second

// Client: gRPC-клиент платёжного сервиса.
type Client struct {
	rpc     paymentsv1.PaymentServiceClient
	timeout time.Duration
	logger  *log.Entry
}

// NewClient создаёт клиента поверх готового соединения.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "payment-client")
	}
	return &Client{
		rpc:     paymentsv1.NewPaymentServiceClient(conn),
		timeout: timeout,
		logger:  logger,
	}
}

// CreateSession выполняет одну попытку; ответ провайдера возвращается как есть.
func (c *Client) CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (domain.PaymentSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	in := &paymentsv1.CreatePaymentSessionRequest{
		OrderID:  req.OrderID,
		Currency: req.Currency,
		Items:    make([]paymentsv1.LineItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, paymentsv1.LineItem{
			Name:     item.Name,
			Price:    item.Price.StringFixed(2),
			Quantity: item.Quantity,
		})
	}

	resp, err := c.rpc.CreatePaymentSession(callCtx, in)
	if err != nil {
		c.logger.WithError(err).WithField("order_id", req.OrderID).Warn("create payment session failed")
		return domain.PaymentSession{}, domain.NewRemoteDependencyError("payment provider unavailable",
			errors.Wrapf(err, "create payment session for order %s", req.OrderID))
	}

	return domain.PaymentSession{
		URL:        resp.URL,
		SuccessURL: resp.SuccessURL,
		CancelURL:  resp.CancelURL,
	}, nil
}

var _ domain.PaymentGateway = (*Client)(nil)
