package catalog

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orders/internal/api/productsv1"
	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// DefaultTimeout ограничивает один вызов каталога.
const DefaultTimeout = 5 * time.Second

// Client: gRPC-клиент каталога товаров.
type Client struct {
	rpc     productsv1.ProductServiceClient
	timeout time.Duration
	logger  *log.Entry
}

// NewClient создаёт клиента поверх готового соединения.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "catalog-client")
	}
	return &Client{
		rpc:     productsv1.NewProductServiceClient(conn),
		timeout: timeout,
		logger:  logger,
	}
}

// Validate запрашивает товары одним пакетом. Повторов нет.
func (c *Client) Validate(ctx context.Context, ids []int64) ([]domain.Product, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.rpc.ValidateProducts(callCtx, &productsv1.ValidateProductsRequest{IDs: ids})
	if err != nil {
		c.logger.WithError(err).WithField("product_ids", ids).Warn("validate products failed")
		return nil, classify(err)
	}

	products := make([]domain.Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, domain.NewRemoteDependencyError("product catalog returned malformed price",
				errors.Wrapf(err, "parse price of product %d", p.ID))
		}
		products = append(products, domain.Product{ID: p.ID, Name: p.Name, Price: price})
	}
	return products, nil
}

func classify(err error) error {
	st, _ := status.FromError(err)
	wrapped := errors.Wrap(err, "validate products")
	switch st.Code() {
	case codes.NotFound, codes.InvalidArgument:
		return domain.NewValidationError(st.Message(), wrapped)
	default:
		return domain.NewRemoteDependencyError("product catalog unavailable", wrapped)
	}
}

var _ domain.ProductCatalog = (*Client)(nil)
