package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"digi-merch/internal/mail"
	"digi-merch/internal/model"
	"digi-merch/internal/payment"
	"digi-merch/internal/serial"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetBySerial(ctx context.Context, serialNo string) (*model.Order, error) {
	args := m.Called(ctx, serialNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByEmailAndSerial(ctx context.Context, email, serialNo string) (*model.Order, error) {
	args := m.Called(ctx, email, serialNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListSerialsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListApprovedByEmail(ctx context.Context, email string) ([]model.Order, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatusTags(ctx context.Context, id uuid.UUID, statusTags string) error {
	args := m.Called(ctx, id, statusTags)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateProducts(ctx context.Context, id uuid.UUID, products []model.OrderProduct) error {
	args := m.Called(ctx, id, products)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateReference(ctx context.Context, id uuid.UUID, referenceNo string) error {
	args := m.Called(ctx, id, referenceNo)
	return args.Error(0)
}

// MockEntitlementRepository is a mock implementation of EntitlementRepository.
type MockEntitlementRepository struct {
	mock.Mock
}

func (m *MockEntitlementRepository) Upsert(ctx context.Context, entitlement *model.Entitlement) error {
	args := m.Called(ctx, entitlement)
	return args.Error(0)
}

func (m *MockEntitlementRepository) GetByEmail(ctx context.Context, email string) (*model.Entitlement, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Entitlement), args.Error(1)
}

func (m *MockEntitlementRepository) IncrementUsage(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

// MockSequence is a mock implementation of sequence.Sequence.
type MockSequence struct {
	mock.Mock
}

func (m *MockSequence) Next(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockSender is a mock implementation of mail.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockGateway is a mock implementation of payment.Client.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func validSubmitRequest() *model.SubmitOrderRequest {
	return &model.SubmitOrderRequest{
		Username:          "juan",
		Email:             "Juan@Example.com",
		Products:          []model.OrderProduct{{Name: "PhotoStudio Pro", Amount: 499}},
		ReferenceNo:       "gcash ref 1234567",
		PaymentPortalUsed: "gcash",
	}
}

func TestOrderService_Submit_Success(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockSender := new(MockSender)

	svc := NewOrderService(mockRepo, mockSeq, mockSender, nil, "admin@example.com", logger)

	mockSeq.On("Next", ctx).Return(int64(7), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).Return(nil)
	mockSender.On("Send", ctx, mock.AnythingOfType("mail.Message")).Return(nil).Twice()
	mockRepo.On("UpdateStatusTags", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	resp, err := svc.Submit(ctx, validSubmitRequest())

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Regexp(t, serial.Pattern, resp.SerialNo)
	assert.Equal(t, int64(7), resp.SequenceNo)
	assert.Equal(t, "customer:sent | admin:sent", resp.EmailStatus)

	mockRepo.AssertExpectations(t)
	mockSeq.AssertExpectations(t)
	mockSender.AssertExpectations(t)
}

func TestOrderService_Submit_SerialConflictRetry(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockSender := new(MockSender)

	svc := NewOrderService(mockRepo, mockSeq, mockSender, nil, "", logger)

	mockSeq.On("Next", ctx).Return(int64(8), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).
		Return([]string{serial.Format(time.Now(), 3)}, nil)
	// First insert collides, second lands
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).Return(model.ErrSerialConflict).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).Return(nil).Once()
	mockSender.On("Send", ctx, mock.AnythingOfType("mail.Message")).Return(nil)
	mockRepo.On("UpdateStatusTags", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	resp, err := svc.Submit(ctx, validSubmitRequest())

	require.NoError(t, err)
	// Max existing suffix was 3, first attempt 004 collided, 005 landed
	assert.Equal(t, serial.Format(time.Now(), 5), resp.SerialNo)

	mockRepo.AssertExpectations(t)
}

func TestOrderService_Submit_SerialAllocationExhausted(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockSender := new(MockSender)

	svc := NewOrderService(mockRepo, mockSeq, mockSender, nil, "", logger)

	mockSeq.On("Next", ctx).Return(int64(1), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).
		Return(model.ErrSerialConflict).Times(serial.MaxAttempts)

	resp, err := svc.Submit(ctx, validSubmitRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSerialExhausted)
	assert.Nil(t, resp)

	mockRepo.AssertExpectations(t)
	mockSender.AssertNotCalled(t, "Send")
}

func TestOrderService_Submit_NonConflictCreateErrorIsFatal(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockSender := new(MockSender)

	svc := NewOrderService(mockRepo, mockSeq, mockSender, nil, "", logger)

	mockSeq.On("Next", ctx).Return(int64(1), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).
		Return(errors.New("connection refused")).Once()

	resp, err := svc.Submit(ctx, validSubmitRequest())

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.NotErrorIs(t, err, model.ErrSerialExhausted)

	mockRepo.AssertExpectations(t)
}

func TestOrderService_Submit_SequenceFailureDegrades(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockSender := new(MockSender)

	svc := NewOrderService(mockRepo, mockSeq, mockSender, nil, "", logger)

	mockSeq.On("Next", ctx).Return(int64(0), errors.New("redis down"))
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).Return(nil)
	mockSender.On("Send", ctx, mock.AnythingOfType("mail.Message")).Return(nil)
	mockRepo.On("UpdateStatusTags", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	resp, err := svc.Submit(ctx, validSubmitRequest())

	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.SequenceNo)
}

func TestOrderService_Submit_EmailFailureDoesNotFailSubmission(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockSender := new(MockSender)

	svc := NewOrderService(mockRepo, mockSeq, mockSender, nil, "admin@example.com", logger)

	mockSeq.On("Next", ctx).Return(int64(1), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).Return(nil)
	mockSender.On("Send", ctx, mock.AnythingOfType("mail.Message")).Return(errors.New("smtp timeout"))
	mockRepo.On("UpdateStatusTags", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	resp, err := svc.Submit(ctx, validSubmitRequest())

	require.NoError(t, err)
	assert.Contains(t, resp.EmailStatus, "customer:failed:")
	assert.Contains(t, resp.EmailStatus, "admin:failed:")
}

func TestOrderService_Submit_ValidationErrors(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	svc := NewOrderService(mockRepo, nil, new(MockSender), nil, "", logger)

	tests := []struct {
		name    string
		mutate  func(*model.SubmitOrderRequest)
		reasons []string
	}{
		{
			name:    "Missing username",
			mutate:  func(r *model.SubmitOrderRequest) { r.Username = "  " },
			reasons: []string{"username is required"},
		},
		{
			name:    "Invalid email",
			mutate:  func(r *model.SubmitOrderRequest) { r.Email = "not-an-email" },
			reasons: []string{"email must be a valid address"},
		},
		{
			name:    "No products",
			mutate:  func(r *model.SubmitOrderRequest) { r.Products = nil },
			reasons: []string{"at least one product is required"},
		},
		{
			name: "All amounts zero",
			mutate: func(r *model.SubmitOrderRequest) {
				r.Products = []model.OrderProduct{{Name: "Free Thing", Amount: 0}}
			},
			reasons: []string{"at least one product must have a positive amount"},
		},
		{
			name:    "Short reference",
			mutate:  func(r *model.SubmitOrderRequest) { r.ReferenceNo = "ref 123" },
			reasons: []string{"reference number must end in at least 6 digits"},
		},
		{
			name: "Multiple reasons collected",
			mutate: func(r *model.SubmitOrderRequest) {
				r.Username = ""
				r.Email = "bad"
				r.Products = nil
			},
			reasons: []string{
				"username is required",
				"email must be a valid address",
				"at least one product is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmitRequest()
			tt.mutate(req)

			resp, err := svc.Submit(ctx, req)

			require.Error(t, err)
			assert.Nil(t, resp)

			var validationErr *model.ValidationError
			require.ErrorAs(t, err, &validationErr)
			for _, reason := range tt.reasons {
				assert.Contains(t, validationErr.Reasons, reason)
			}
		})
	}

	mockRepo.AssertNotCalled(t, "Create")
}

func TestOrderService_Submit_ChannelReferenceFormats(t *testing.T) {
	tests := []struct {
		name      string
		channel   string
		reference string
		valid     bool
	}{
		{"Gcash trailing digits", ChannelGcash, "sent via app 9876543", true},
		{"Gcash too few digits", ChannelGcash, "ref 12345", false},
		{"Bank numeric", ChannelBank, "12345678901234", true},
		{"Bank too short", ChannelBank, "123456789", false},
		{"Bank non-numeric", ChannelBank, "12345abc678901", false},
		{"Card hash-prefixed", ChannelCard, "#AB12CD34EF", true},
		{"Card missing hash", ChannelCard, "AB12CD34EF", false},
		{"Checkout needs no reference", ChannelCheckout, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := validateReference(tt.channel, tt.reference)
			if tt.valid {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestNormalizeReference_GcashKeepsLastSixDigits(t *testing.T) {
	assert.Equal(t, "876543", normalizeReference(ChannelGcash, "paid, ref 9876543"))
	assert.Equal(t, "123456", normalizeReference("", "123456"))
	// Other channels stored verbatim
	assert.Equal(t, "12345678901234", normalizeReference(ChannelBank, "12345678901234"))
}

func TestOrderService_Checkout_Success(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockGateway := new(MockGateway)

	svc := NewOrderService(mockRepo, mockSeq, new(MockSender), mockGateway, "", logger)

	mockSeq.On("Next", ctx).Return(int64(2), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).Return(nil)
	mockGateway.On("CreateCheckout", ctx, mock.MatchedBy(func(req payment.CheckoutRequest) bool {
		return req.Metadata["serial_no"] != "" && req.Amount == 499
	})).Return("https://checkout.example.com/cs_123", nil)

	req := validSubmitRequest()
	req.ReferenceNo = ""

	resp, err := svc.Checkout(ctx, req)

	require.NoError(t, err)
	assert.Regexp(t, serial.Pattern, resp.SerialNo)
	assert.Equal(t, "https://checkout.example.com/cs_123", resp.CheckoutURL)

	mockGateway.AssertExpectations(t)
}

func TestOrderService_Checkout_GatewayFailure(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockGateway := new(MockGateway)

	svc := NewOrderService(mockRepo, mockSeq, new(MockSender), mockGateway, "", logger)

	mockSeq.On("Next", ctx).Return(int64(3), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).Return(nil)
	mockGateway.On("CreateCheckout", ctx, mock.AnythingOfType("payment.CheckoutRequest")).
		Return("", errors.New("gateway unavailable"))

	req := validSubmitRequest()
	req.ReferenceNo = ""

	resp, err := svc.Checkout(ctx, req)
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestOrderService_List_FiltersByDerivedStatus(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	svc := NewOrderService(mockRepo, nil, new(MockSender), nil, "", logger)

	orders := []model.Order{
		{SerialNo: "DMERCH-2025AUG24-001", StatusTags: "pending"},
		{SerialNo: "DMERCH-2025AUG24-002", StatusTags: "pending | review:approved"},
		{SerialNo: "DMERCH-2025AUG24-003", StatusTags: "pending | review:rejected"},
	}
	mockRepo.On("List", ctx, 50, 0).Return(orders, nil)

	approved, err := svc.List(ctx, 50, 0, "approved")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "DMERCH-2025AUG24-002", approved[0].SerialNo)

	all, err := svc.List(ctx, 50, 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOrderService_TotalAmountFallsBackToItemSum(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockRepo := new(MockOrderRepository)
	mockSeq := new(MockSequence)
	mockSender := new(MockSender)

	svc := NewOrderService(mockRepo, mockSeq, mockSender, nil, "", logger)

	var created *model.Order
	mockSeq.On("Next", ctx).Return(int64(1), nil)
	mockRepo.On("ListSerialsByPrefix", ctx, mock.AnythingOfType("string")).Return([]string{}, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.Order")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*model.Order)
		}).Return(nil)
	mockSender.On("Send", ctx, mock.AnythingOfType("mail.Message")).Return(nil)
	mockRepo.On("UpdateStatusTags", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	req := validSubmitRequest()
	req.TotalAmount = 0
	req.Products = []model.OrderProduct{
		{Name: "A", Amount: 100},
		{Name: "B", Amount: 250},
	}

	_, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 350.0, created.TotalAmount)
	assert.Equal(t, "juan@example.com", created.BuyerEmail)
}
