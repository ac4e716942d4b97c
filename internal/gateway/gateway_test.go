package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/pkg/clients"
)

func NewMock(t *testing.T) (*Client, *clients.MockHTTPClientI) {
	ctrl := gomock.NewController(t)
	client := clients.NewMockHTTPClientI(ctrl)
	c := New("http://localhost:8081", client)
	c.retryInterval = time.Millisecond
	return c, client
}

func TestClient_Send(t *testing.T) {
	c, client := NewMock(t)
	in := domain.PayoutInstruction{PayoutID: uuid.New(), Amount: 5000, Currency: "USD", Destination: "4561261212345467"}

	tests := []struct {
		name          string
		prepareMock   func()
		expected      *domain.GatewayReceipt
		expectedError error
	}{
		{
			name: "Succeeded",
			prepareMock: func() {
				client.EXPECT().Post(gomock.Any(), "http://localhost:8081/api/payouts", gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, h http.Header, _ []byte) (int, []byte, error) {
						assert.Equal(t, in.PayoutID.String(), h.Get("Idempotency-Key"))
						return http.StatusOK, []byte(`{"status":"succeeded","reference":"gw-1"}`), nil
					})
			},
			expected: &domain.GatewayReceipt{Succeeded: true, Reference: "gw-1"},
		},
		{
			name: "Declined in body",
			prepareMock: func() {
				client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(http.StatusOK, []byte(`{"status":"failed","reference":"gw-2","reason":"account closed"}`), nil)
			},
			expected: &domain.GatewayReceipt{Succeeded: false, Reference: "gw-2", Reason: "account closed"},
		},
		{
			name: "Refused with client error",
			prepareMock: func() {
				client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(http.StatusUnprocessableEntity, nil, nil)
			},
			expected: &domain.GatewayReceipt{Succeeded: false, Reason: "gateway refused payout: 422"},
		},
		{
			name: "Server error then success",
			prepareMock: func() {
				gomock.InOrder(
					client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(http.StatusServiceUnavailable, nil, nil),
					client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(http.StatusTooManyRequests, nil, nil),
					client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
						Return(http.StatusCreated, []byte(`{"status":"succeeded","reference":"gw-3"}`), nil),
				)
			},
			expected: &domain.GatewayReceipt{Succeeded: true, Reference: "gw-3"},
		},
		{
			name: "Transport errors exhaust retries",
			prepareMock: func() {
				client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(0, nil, errors.New("connection refused")).Times(maxRetries + 1)
			},
			expectedError: ErrUnavailable,
		},
		{
			name: "Server errors exhaust retries",
			prepareMock: func() {
				client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(http.StatusBadGateway, nil, nil).Times(maxRetries + 1)
			},
			expectedError: ErrUnavailable,
		},
		{
			name: "Unexpected status is not retried",
			prepareMock: func() {
				client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(http.StatusNoContent, nil, nil)
			},
			expectedError: ErrUnavailable,
		},
		{
			name: "Unrecognized status in body",
			prepareMock: func() {
				client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(http.StatusOK, []byte(`{"status":"queued"}`), nil)
			},
			expectedError: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			receipt, err := c.Send(context.Background(), in)

			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, receipt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, receipt)
		})
	}
}

func TestClient_Send_Canceled(t *testing.T) {
	c, client := NewMock(t)
	c.retryInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	client.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, http.Header, []byte) (int, []byte, error) {
			cancel()
			return http.StatusServiceUnavailable, nil, nil
		})

	receipt, err := c.Send(ctx, domain.PayoutInstruction{PayoutID: uuid.New(), Amount: 100, Currency: "USD"})

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, receipt)
}
