package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestMockService(t *testing.T) {
	mock := NewMockService()

	session, err := mock.CreateSession(context.Background(), domain.PaymentSessionRequest{OrderID: "o-1", Currency: "usd"})
	require.NoError(t, err)
	require.Equal(t, "https://payments.local/checkout/o-1", session.URL)
	require.Equal(t, 1, mock.Calls())
	require.Equal(t, "usd", mock.Requests[0].Currency)

	mock.SessionErr = errors.New("declined")
	_, err = mock.CreateSession(context.Background(), domain.PaymentSessionRequest{OrderID: "o-2"})
	require.EqualError(t, err, "declined")
	require.Equal(t, 2, mock.Calls())
}
