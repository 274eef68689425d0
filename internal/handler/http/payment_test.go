package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/halver/shopcore/internal/gateway"
	"github.com/halver/shopcore/internal/handler/http/mocks"
	"github.com/halver/shopcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentHandler_Initiate(t *testing.T) {
	orderID := uuid.New()

	tests := []struct {
		name           string
		orderID        string
		setup          func(t *testing.T) *mocks.MockPaymentService
		wantStatusCode int
	}{
		{
			// 200 — artifact returned
			name:    "valid_request_return_200",
			orderID: orderID.String(),
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Initiate(gomock.Any(), orderID).Return(&gateway.Session{
					PaymentID:   "PAY-1",
					RedirectURL: "https://pay.example.com/session",
					HTML:        "<html><body onload=\"document.forms[0].submit()\"></body></html>",
				}, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// 400 — malformed order id
			name:    "bad_order_id_return_400",
			orderID: "not-a-uuid",
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Initiate(gomock.Any(), gomock.Any()).Times(0)
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			// 404 — unknown order
			name:    "unknown_order_return_404",
			orderID: orderID.String(),
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Initiate(gomock.Any(), gomock.Any()).
					Return(nil, models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			// 409 — order not payable in its current status
			name:    "not_payable_return_409",
			orderID: orderID.String(),
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Initiate(gomock.Any(), gomock.Any()).
					Return(nil, models.ErrInvalidTransition).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			// 503 — gateway not configured
			name:    "gateway_unconfigured_return_503",
			orderID: orderID.String(),
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Initiate(gomock.Any(), gomock.Any()).
					Return(nil, models.ErrGatewayNotConfigured).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusServiceUnavailable,
		},
		{
			// 500 — internal error
			name:    "internal_error_return_500",
			orderID: orderID.String(),
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Initiate(gomock.Any(), gomock.Any()).
					Return(nil, models.ErrInternalError).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payments/"+tt.orderID+"/initiate", nil)
			req = withURLParam(req, "orderID", tt.orderID)

			w := httptest.NewRecorder()
			st := tt.setup(t)

			h := NewPaymentHandler(st).Initiate()
			h(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if res.StatusCode == http.StatusOK {
				assert.Contains(t, res.Header.Get("Content-Type"), "text/html")

				body, err := io.ReadAll(res.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "document.forms[0].submit()")
			}
		})
	}
}

func TestPaymentHandler_Status(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T) *mocks.MockPaymentService
		wantStatusCode int
		wantBody       string
	}{
		{
			// 200 — status returned
			name: "valid_request_return_200",
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().CheckStatus(gomock.Any(), "PAY-1").
					Return(models.PaymentStatusCompleted, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantBody:       `{"payment_id":"PAY-1","status":"completed"}` + "\n",
		},
		{
			// 404 — unknown payment id
			name: "unknown_payment_return_404",
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().CheckStatus(gomock.Any(), gomock.Any()).
					Return("", models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			// 500 — internal error
			name: "internal_error_return_500",
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().CheckStatus(gomock.Any(), gomock.Any()).
					Return("", models.ErrInternalError).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/payments/PAY-1/status", nil)
			req = withURLParam(req, "paymentID", "PAY-1")

			w := httptest.NewRecorder()
			st := tt.setup(t)

			h := NewPaymentHandler(st).Status()
			h(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantBody != "" {
				body, err := io.ReadAll(res.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}
