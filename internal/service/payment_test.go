package service

import (
	"context"
	"sync"
	"testing"

	"github.com/halver/shopcore/internal/gateway"
	"github.com/halver/shopcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testGatewayClient() *gateway.Client {
	return gateway.NewClient(gateway.Config{
		BaseURL:    "https://sandbox.pay.example.com",
		MerchantID: "M1001",
		Secret:     "s3cret",
		ReturnURL:  "https://shop.example.com/return",
		ErrorURL:   "https://shop.example.com/error",
	})
}

func newTestPaymentService(repo *fakeOrderRepo, gw GatewayClient, failedCancels bool, pub *fakePublisher) *PaymentService {
	if pub == nil {
		pub = &fakePublisher{}
	}
	return NewPaymentService(repo, gw, pub, failedCancels, zap.NewNop())
}

func seedOrder(t *testing.T, repo *fakeOrderRepo) *models.Order {
	t.Helper()
	svc := newTestOrderService(repo, testTenantContext(), nil, &fakeDispatcher{}, &fakePublisher{})
	order, err := svc.Create(context.Background(), testDraft(), "pay-test-"+t.Name())
	require.NoError(t, err)
	return order
}

func TestPaymentService_Initiate(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)

	svc := newTestPaymentService(repo, testGatewayClient(), false, nil)

	session, err := svc.Initiate(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotEmpty(t, session.PaymentID)

	// session must be persisted before the artifact is handed out
	stored, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, session.PaymentID, stored.PaymentID)
	assert.Equal(t, models.PaymentStatusInitiated, stored.PaymentStatus)
	assert.Equal(t, session.RedirectURL, stored.RedirectURL)
	assert.Contains(t, session.HTML, session.PaymentID)
}

func TestPaymentService_InitiateTwiceOverwritesSession(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)

	svc := newTestPaymentService(repo, testGatewayClient(), false, nil)

	first, err := svc.Initiate(context.Background(), order.ID)
	require.NoError(t, err)
	second, err := svc.Initiate(context.Background(), order.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.PaymentID, second.PaymentID)

	stored, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, second.PaymentID, stored.PaymentID)
	// committed order fields stay intact
	assert.Equal(t, order.Number, stored.Number)
	assert.Equal(t, order.TotalCents, stored.TotalCents)
}

func TestPaymentService_InitiateUnconfigured(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)

	svc := newTestPaymentService(repo, gateway.NewClient(gateway.Config{}), false, nil)

	_, err := svc.Initiate(context.Background(), order.ID)
	assert.ErrorIs(t, err, models.ErrGatewayNotConfigured)
}

func TestPaymentService_InitiateNotPayable(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)
	require.NoError(t, repo.UpdateOrderStatus(context.Background(), order.ID, models.OrderStatusCancelled))

	svc := newTestPaymentService(repo, testGatewayClient(), false, nil)

	_, err := svc.Initiate(context.Background(), order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestPaymentService_Reconcile(t *testing.T) {
	tests := []struct {
		name              string
		payload           map[string]string
		failedCancels     bool
		wantErr           error
		wantPaymentStatus string
		wantOrderStatus   string
	}{
		{
			name:              "captured_confirms_order",
			payload:           map[string]string{"result": "CAPTURED", "tranid": "PAY-1"},
			wantPaymentStatus: models.PaymentStatusCompleted,
			wantOrderStatus:   models.OrderStatusConfirmed,
		},
		{
			name:              "canonical_fields",
			payload:           map[string]string{"status": "completed", "payment_id": "PAY-1"},
			wantPaymentStatus: models.PaymentStatusCompleted,
			wantOrderStatus:   models.OrderStatusConfirmed,
		},
		{
			// payment failure leaves the business status at pending
			name:              "failed_keeps_pending_by_default",
			payload:           map[string]string{"result": "NOT CAPTURED", "tranid": "PAY-1"},
			wantPaymentStatus: models.PaymentStatusFailed,
			wantOrderStatus:   models.OrderStatusPending,
		},
		{
			name:              "failed_cancels_when_configured",
			payload:           map[string]string{"result": "DENIED", "tranid": "PAY-1"},
			failedCancels:     true,
			wantPaymentStatus: models.PaymentStatusFailed,
			wantOrderStatus:   models.OrderStatusCancelled,
		},
		{
			name:              "pending_stays_pending",
			payload:           map[string]string{"result": "PENDING", "tranid": "PAY-1"},
			wantPaymentStatus: models.PaymentStatusPending,
			wantOrderStatus:   models.OrderStatusPending,
		},
		{
			name:    "missing_identifying_fields",
			payload: map[string]string{"result": "CAPTURED"},
			wantErr: models.ErrInvalidCallback,
		},
		{
			name:    "unknown_status_vocabulary",
			payload: map[string]string{"result": "FROBNICATED", "tranid": "PAY-1"},
			wantErr: models.ErrInvalidCallback,
		},
		{
			name:    "signature_rejection_distinct",
			payload: map[string]string{"result": "INVALID_SIGNATURE", "tranid": "PAY-1"},
			wantErr: models.ErrSignatureRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeOrderRepo()
			order := seedOrder(t, repo)
			require.NoError(t, repo.SetPaymentSession(context.Background(), order.ID,
				"card", "PAY-1", models.PaymentStatusInitiated, ""))

			svc := newTestPaymentService(repo, testGatewayClient(), tt.failedCancels, nil)

			raw := []byte(`result=raw-payload`)
			err := svc.Reconcile(context.Background(), tt.payload, raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			stored, err := repo.GetOrderByPaymentID(context.Background(), "PAY-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaymentStatus, stored.PaymentStatus)
			assert.Equal(t, tt.wantOrderStatus, stored.Status)
			assert.Equal(t, raw, stored.RawCallback)
		})
	}
}

func TestPaymentService_ReconcileUnrecognizedStoresRaw(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)
	require.NoError(t, repo.SetPaymentSession(context.Background(), order.ID,
		"card", "PAY-1", models.PaymentStatusInitiated, ""))

	svc := newTestPaymentService(repo, testGatewayClient(), false, nil)

	raw := []byte(`result=FROBNICATED&tranid=PAY-1`)
	err := svc.Reconcile(context.Background(),
		map[string]string{"result": "FROBNICATED", "tranid": "PAY-1"}, raw)
	assert.ErrorIs(t, err, models.ErrInvalidCallback)

	// the payload is kept for audit even though normalization failed;
	// payment and business state are untouched
	stored, err := repo.GetOrderByPaymentID(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, raw, stored.RawCallback)
	assert.Equal(t, models.PaymentStatusInitiated, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestPaymentService_ReconcileStaleAfterCapture(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)
	require.NoError(t, repo.SetPaymentSession(context.Background(), order.ID,
		"card", "PAY-1", models.PaymentStatusInitiated, ""))

	pub := &fakePublisher{}
	svc := newTestPaymentService(repo, testGatewayClient(), false, pub)

	require.NoError(t, svc.Reconcile(context.Background(),
		map[string]string{"result": "CAPTURED", "tranid": "PAY-1"}, []byte(`captured`)))
	published := pub.count()

	// an out-of-order PENDING arriving after capture must not regress
	// the settled payment; only the payload is recorded
	staleRaw := []byte(`result=PENDING&tranid=PAY-1`)
	require.NoError(t, svc.Reconcile(context.Background(),
		map[string]string{"result": "PENDING", "tranid": "PAY-1"}, staleRaw))

	stored, err := repo.GetOrderByPaymentID(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, staleRaw, stored.RawCallback)
	assert.Equal(t, published, pub.count())
}

func TestPaymentService_ReconcileUnknownPaymentID(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newTestPaymentService(repo, testGatewayClient(), false, nil)

	err := svc.Reconcile(context.Background(),
		map[string]string{"result": "CAPTURED", "tranid": "NO-SUCH"}, []byte(`x`))
	assert.ErrorIs(t, err, models.ErrDataNotFound)
}

func TestPaymentService_ReconcileIdempotent(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)
	require.NoError(t, repo.SetPaymentSession(context.Background(), order.ID,
		"card", "PAY-1", models.PaymentStatusInitiated, ""))

	pub := &fakePublisher{}
	svc := newTestPaymentService(repo, testGatewayClient(), false, pub)

	payload := map[string]string{"result": "CAPTURED", "tranid": "PAY-1"}

	require.NoError(t, svc.Reconcile(context.Background(), payload, []byte(`x`)))
	applied := repo.applyCalls
	published := pub.count()

	// re-delivery of the identical callback is a no-op
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Reconcile(context.Background(), payload, []byte(`x`)))
	}

	assert.Equal(t, applied, repo.applyCalls)
	assert.Equal(t, published, pub.count())

	stored, err := repo.GetOrderByPaymentID(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
}

func TestPaymentService_ReconcileConcurrentDuplicates(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)
	require.NoError(t, repo.SetPaymentSession(context.Background(), order.ID,
		"card", "PAY-1", models.PaymentStatusInitiated, ""))

	svc := newTestPaymentService(repo, testGatewayClient(), false, nil)
	payload := map[string]string{"result": "CAPTURED", "tranid": "PAY-1"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Reconcile(context.Background(), payload, []byte(`x`)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// deliveries are serialized per payment id, only the first applies
	assert.Equal(t, 1, repo.applyCalls)

	// lock entries are released once no delivery holds them
	svc.mu.Lock()
	assert.Empty(t, svc.locks)
	svc.mu.Unlock()
}

func TestPaymentService_CheckStatus(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(t, repo)
	require.NoError(t, repo.SetPaymentSession(context.Background(), order.ID,
		"card", "PAY-1", models.PaymentStatusInitiated, ""))

	svc := newTestPaymentService(repo, testGatewayClient(), false, nil)

	status, err := svc.CheckStatus(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusInitiated, status)

	_, err = svc.CheckStatus(context.Background(), "NO-SUCH")
	assert.ErrorIs(t, err, models.ErrDataNotFound)
}
