package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"digi-merch/internal/catalog"
	"digi-merch/internal/handler"
	"digi-merch/internal/mail"
	"digi-merch/internal/model"
	"digi-merch/internal/payment"
	"digi-merch/internal/repository"
	"digi-merch/internal/router"
	"digi-merch/internal/serial"
	"digi-merch/internal/service"
	"digi-merch/internal/token"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDeliverySecret = "integration-delivery-secret"
	testJWTSecret      = "integration-jwt-secret"
	testWebhookSecret  = "integration-webhook-secret"
	testBaseURL        = "https://store.example.com"
	testAdminEmail     = "reviewer@example.com"
)

// capturingSender records outbound mail instead of dialing SMTP.
type capturingSender struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (s *capturingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *capturingSender) sentTo(to string) []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mail.Message
	for _, msg := range s.messages {
		if msg.To == to {
			out = append(out, msg)
		}
	}
	return out
}

// stubGateway stands in for the hosted-checkout gateway.
type stubGateway struct{}

func (stubGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (string, error) {
	return "https://gateway.example.com/checkout/" + req.Metadata["serial_no"], nil
}

func setupTestServer(t *testing.T, testDB *TestDB) (http.Handler, *capturingSender) {
	t.Helper()

	logger := zerolog.Nop()

	orderRepo := repository.NewOrderRepository(testDB.Pool, logger)
	entitlementRepo := repository.NewEntitlementRepository(testDB.Pool, logger)

	cat := catalog.New([]catalog.Entry{
		{Name: "PhotoStudio Pro", FileLink: "https://drive.google.com/file/d/abc123/view?usp=sharing", Price: 499},
		{Name: "Audio Mixer", FileLink: "https://example.com/files/audio-mixer.zip", Price: 299},
	})

	tokens := token.NewService(testDeliverySecret)
	sender := &capturingSender{}

	orderService := service.NewOrderService(orderRepo, nil, sender, stubGateway{}, testAdminEmail, logger)
	entitlementService := service.NewEntitlementService(orderRepo, entitlementRepo, logger)
	reviewService := service.NewReviewService(orderRepo, cat, entitlementService, tokens, sender, testBaseURL, logger)
	redemptionService := service.NewRedemptionService(orderRepo, entitlementRepo, entitlementService, tokens, logger)

	orderHandler := handler.NewOrderHandler(orderService, logger)
	adminHandler := handler.NewAdminHandler(orderService, reviewService, logger)
	downloadHandler := handler.NewDownloadHandler(redemptionService, logger)
	webhookHandler := handler.NewWebhookHandler(reviewService, testWebhookSecret, logger)

	return router.New(
		orderHandler,
		adminHandler,
		downloadHandler,
		webhookHandler,
		testJWTSecret,
		[]string{testAdminEmail},
		logger,
	), sender
}

func adminToken(t *testing.T, email string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email})
	signed, err := tok.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func submitOrder(t *testing.T, server http.Handler, email string, products []model.OrderProduct) string {
	t.Helper()

	body, err := json.Marshal(&model.SubmitOrderRequest{
		Username:          "juan",
		Email:             email,
		Products:          products,
		ReferenceNo:       "GCash ref 9876543210",
		PaymentPortalUsed: "gcash",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp model.SubmitOrderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Regexp(t, serial.Pattern, resp.SerialNo)
	return resp.SerialNo
}

func reviewOrder(t *testing.T, server http.Handler, serialNo, action string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(&model.ReviewRequest{Action: action})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/"+serialNo+"/review", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, testAdminEmail))
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)
	return w
}

func redeemDownload(t *testing.T, server http.Handler, tok, productName string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(&model.RedeemRequest{Token: tok, ProductName: productName})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/download", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)
	return w
}

func TestOrderLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server, sender := setupTestServer(t, testDB)
	tokens := token.NewService(testDeliverySecret)

	products := []model.OrderProduct{{Name: "PhotoStudio Pro", Amount: 499}}

	t.Run("submission allocates distinct serials", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		first := submitOrder(t, server, "buyer@example.com", products)
		second := submitOrder(t, server, "buyer@example.com", products)
		assert.NotEqual(t, first, second)

		// Both recipients were notified
		assert.NotEmpty(t, sender.sentTo("buyer@example.com"))
		assert.NotEmpty(t, sender.sentTo(testAdminEmail))
	})

	t.Run("admin list requires a reviewer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "intruder@example.com"))
		w = httptest.NewRecorder()

		server.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("approve then deliver and redeem", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		serialNo := submitOrder(t, server, "buyer@example.com", products)

		w := reviewOrder(t, server, serialNo, "approve")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var reviewResp model.ReviewResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&reviewResp))
		assert.Equal(t, "approved", reviewResp.Status)

		// Approval email carries the access link
		approvalMail := sender.sentTo("buyer@example.com")
		require.NotEmpty(t, approvalMail)
		assert.Contains(t, approvalMail[len(approvalMail)-1].HTML, testBaseURL+"/api/delivery?access=")

		tok, err := tokens.Issue(token.Payload{Email: "buyer@example.com", SerialNo: serialNo})
		require.NoError(t, err)

		// Delivery landing shows the purchase without exposing raw links
		req := httptest.NewRequest(http.MethodGet, "/api/delivery?access="+tok, nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var delivery model.DeliveryResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&delivery))
		assert.Equal(t, serialNo, delivery.SerialNo)
		assert.Equal(t, "approved", delivery.Status)
		require.Len(t, delivery.Products, 1)
		assert.Empty(t, delivery.Products[0].FileLink)
		require.NotNil(t, delivery.Entitlement)
		assert.Equal(t, 0, delivery.Entitlement.DownloadUsed)

		// Redemption resolves the direct-download form of the drive link
		rec = redeemDownload(t, server, tok, "PhotoStudio Pro")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var redeem model.RedeemResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&redeem))
		assert.Equal(t, "https://drive.google.com/uc?export=download&id=abc123", redeem.RedirectURL)
		require.NotNil(t, redeem.Entitlement)
		assert.Equal(t, 1, redeem.Entitlement.DownloadUsed)
	})

	t.Run("download cap blocks the eleventh redemption", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		serialNo := submitOrder(t, server, "capped@example.com", products)
		require.Equal(t, http.StatusOK, reviewOrder(t, server, serialNo, "approve").Code)

		tok, err := tokens.Issue(token.Payload{Email: "capped@example.com", SerialNo: serialNo})
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			rec := redeemDownload(t, server, tok, "PhotoStudio Pro")
			require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("redemption %d: %s", i+1, rec.Body.String()))
		}

		rec := redeemDownload(t, server, tok, "PhotoStudio Pro")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "DOWNLOAD_LIMIT_REACHED")
	})

	t.Run("rejected order cannot redeem", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		serialNo := submitOrder(t, server, "rejected@example.com", products)
		require.Equal(t, http.StatusOK, reviewOrder(t, server, serialNo, "reject").Code)

		tok, err := tokens.Issue(token.Payload{Email: "rejected@example.com", SerialNo: serialNo})
		require.NoError(t, err)

		rec := redeemDownload(t, server, tok, "PhotoStudio Pro")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "ORDER_NOT_APPROVED")
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		rec := redeemDownload(t, server, "bogus.token", "PhotoStudio Pro")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
	})
}

func TestCheckoutWebhook_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server, _ := setupTestServer(t, testDB)

	CleanupDB(t, testDB.Pool)

	body, err := json.Marshal(&model.SubmitOrderRequest{
		Username: "juan",
		Email:    "checkout@example.com",
		Products: []model.OrderProduct{{Name: "Audio Mixer", Amount: 299}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var checkout model.CheckoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&checkout))
	assert.Equal(t, "https://gateway.example.com/checkout/"+checkout.SerialNo, checkout.CheckoutURL)

	event := fmt.Sprintf(`{
		"data": {
			"attributes": {
				"type": "checkout_session.payment.paid",
				"data": {
					"attributes": {
						"metadata": {"serial_no": %q, "reference_no": "GW-REF-42"},
						"billing": {"name": "Juan", "email": "checkout@example.com"}
					}
				}
			}
		}
	}`, checkout.SerialNo)

	hookReq := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewBufferString(event))
	hookReq.Header.Set("X-Webhook-Signature", payment.ComputeSignature(testWebhookSecret, []byte(event)))
	hookRec := httptest.NewRecorder()

	server.ServeHTTP(hookRec, hookReq)
	require.Equal(t, http.StatusOK, hookRec.Code, hookRec.Body.String())

	// Replay is absorbed without a second approval
	hookReq = httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewBufferString(event))
	hookReq.Header.Set("X-Webhook-Signature", payment.ComputeSignature(testWebhookSecret, []byte(event)))
	hookRec = httptest.NewRecorder()
	server.ServeHTTP(hookRec, hookReq)
	require.Equal(t, http.StatusOK, hookRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/api/admin/orders/"+checkout.SerialNo, nil)
	getReq.Header.Set("Authorization", "Bearer "+adminToken(t, testAdminEmail))
	getRec := httptest.NewRecorder()

	server.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var order model.Order
	require.NoError(t, json.NewDecoder(getRec.Body).Decode(&order))
	assert.Contains(t, order.StatusTags, "payment:paid")
	assert.Contains(t, order.StatusTags, "review:approved")
	assert.Equal(t, "GW-REF-42", order.ReferenceNo)
}

func TestHealth_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server, _ := setupTestServer(t, testDB)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
