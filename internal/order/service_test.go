package order_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
)

type mockOrderDB struct {
	mock.Mock
}

func (m *mockOrderDB) CreateOrder(ctx context.Context, o models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderDB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderDB) GetCancellationInvoice(ctx context.Context, id string) (*models.CancellationInvoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancellationInvoice), args.Error(1)
}

func (m *mockOrderDB) SetInvoicePath(ctx context.Context, orderID, path string) error {
	args := m.Called(ctx, orderID, path)
	return args.Error(0)
}

func (m *mockOrderDB) ApplyCancellation(ctx context.Context, o models.Order, invoice models.CancellationInvoice) error {
	args := m.Called(ctx, o, invoice)
	return args.Error(0)
}

func (m *mockOrderDB) SetCancellationDocumentPath(ctx context.Context, invoiceID, path string) error {
	args := m.Called(ctx, invoiceID, path)
	return args.Error(0)
}

func (m *mockOrderDB) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

type mockTicketOps struct {
	mock.Mock
}

func (m *mockTicketOps) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *mockTicketOps) GetShow(ctx context.Context, id string) (*models.Show, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Show), args.Error(1)
}

func (m *mockTicketOps) PurchaseTickets(ctx context.Context, ticketIDs []string, userID string) ([]models.Ticket, error) {
	args := m.Called(ctx, ticketIDs, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *mockTicketOps) AssignOrder(ctx context.Context, ticketIDs []string, orderID string) error {
	args := m.Called(ctx, ticketIDs, orderID)
	return args.Error(0)
}

func (m *mockTicketOps) CancelPurchasedTickets(ctx context.Context, ticketIDs []string, userID string) ([]models.Ticket, error) {
	args := m.Called(ctx, ticketIDs, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Refund(paymentIntentID string, amount float64) error {
	args := m.Called(paymentIntentID, amount)
	return args.Error(0)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderOrderInvoice(o models.Order, tickets []models.Ticket) ([]byte, error) {
	args := m.Called(o, tickets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockRenderer) RenderCancellationInvoice(invoice models.CancellationInvoice, tickets []models.Ticket) ([]byte, error) {
	args := m.Called(invoice, tickets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Store(name string, data []byte) (string, error) {
	args := m.Called(name, data)
	return args.String(0), args.Error(1)
}

type fixture struct {
	svc      *order.OrderService
	db       *mockOrderDB
	tickets  *mockTicketOps
	gateway  *mockGateway
	renderer *mockRenderer
	store    *mockStore
}

func newFixture() *fixture {
	f := &fixture{
		db:       &mockOrderDB{},
		tickets:  &mockTicketOps{},
		gateway:  &mockGateway{},
		renderer: &mockRenderer{},
		store:    &mockStore{},
	}
	f.svc = order.NewOrderService(f.db, f.tickets, f.gateway, f.renderer, f.store, nil, logger.NewDiscard())
	return f
}

func purchasedTicket(id, showID string, price float64) models.Ticket {
	return models.Ticket{
		TicketID:  id,
		ShowID:    showID,
		Kind:      models.KindRegular,
		SeatID:    "seat-" + id,
		Price:     price,
		UserID:    "user-1",
		Status:    models.StatusPurchased,
		OrderID:   "order-1",
		UpdatedAt: time.Now(),
	}
}

func TestPurchaseOrderComputesTotal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft := models.OrderDraft{
		UserID:          "user-1",
		TicketIDs:       []string{"t1", "t2"},
		PaymentIntentID: "pi_123",
	}
	tickets := []models.Ticket{
		{TicketID: "t1", ShowID: "show-1", Price: 10.0, Status: models.StatusPurchased},
		{TicketID: "t2", ShowID: "show-1", Price: 15.0, Status: models.StatusPurchased},
	}

	f.tickets.On("PurchaseTickets", ctx, draft.TicketIDs, "user-1").Return(tickets, nil)
	f.db.On("CreateOrder", ctx, mock.MatchedBy(func(o models.Order) bool {
		return o.Total == 25.0 && o.UserID == "user-1" && o.PaymentIntentID == "pi_123"
	})).Return(nil)
	f.tickets.On("AssignOrder", ctx, draft.TicketIDs, mock.AnythingOfType("string")).Return(nil)
	f.renderer.On("RenderOrderInvoice", mock.AnythingOfType("models.Order"), tickets).Return([]byte("pdf"), nil)
	f.store.On("Store", mock.AnythingOfType("string"), []byte("pdf")).Return("/docs/invoice.pdf", nil)
	f.db.On("SetInvoicePath", ctx, mock.AnythingOfType("string"), "/docs/invoice.pdf").Return(nil)

	created, err := f.svc.PurchaseOrder(ctx, draft)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 25.0, created.Total)
	assert.Equal(t, "/docs/invoice.pdf", created.InvoicePath)
	f.db.AssertExpectations(t)
	f.tickets.AssertExpectations(t)
}

func TestPurchaseOrderEmptyDraft(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PurchaseOrder(context.Background(), models.OrderDraft{UserID: "user-1"})
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))

	_, err = f.svc.PurchaseOrder(context.Background(), models.OrderDraft{TicketIDs: []string{"t1"}})
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestPurchaseOrderTicketConflictPropagates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft := models.OrderDraft{UserID: "user-1", TicketIDs: []string{"t1"}}
	f.tickets.On("PurchaseTickets", ctx, draft.TicketIDs, "user-1").
		Return(nil, errs.Conflict("tickets cannot be purchased"))

	_, err := f.svc.PurchaseOrder(ctx, draft)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	f.db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestPurchaseOrderInvoiceRenderFailureIsFatal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft := models.OrderDraft{UserID: "user-1", TicketIDs: []string{"t1"}, Total: 10.0}
	tickets := []models.Ticket{{TicketID: "t1", Price: 10.0, Status: models.StatusPurchased}}

	f.tickets.On("PurchaseTickets", ctx, draft.TicketIDs, "user-1").Return(tickets, nil)
	f.db.On("CreateOrder", ctx, mock.AnythingOfType("models.Order")).Return(nil)
	f.tickets.On("AssignOrder", ctx, draft.TicketIDs, mock.AnythingOfType("string")).Return(nil)
	f.renderer.On("RenderOrderInvoice", mock.AnythingOfType("models.Order"), tickets).
		Return(nil, errors.New("font missing"))

	// the purchase stands, the paperwork failure is surfaced as fatal
	created, err := f.svc.PurchaseOrder(ctx, draft)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	require.NotNil(t, created)
	assert.Equal(t, 10.0, created.Total)
	f.store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
}

func cancellableFixture(t *testing.T) (*fixture, *models.Order) {
	f := newFixture()
	ctx := context.Background()

	existing := &models.Order{
		OrderID:         "order-1",
		UserID:          "user-1",
		Total:           25.0,
		PaymentIntentID: "pi_123",
		CreatedAt:       time.Now().Add(-time.Hour),
	}
	t1 := purchasedTicket("t1", "show-1", 10.0)
	t2 := purchasedTicket("t2", "show-1", 15.0)

	f.tickets.On("GetTicket", ctx, "t1").Return(&t1, nil)
	f.tickets.On("GetTicket", ctx, "t2").Return(&t2, nil)
	f.db.On("GetOrderByID", ctx, "order-1").Return(existing, nil)
	f.tickets.On("GetShow", ctx, "show-1").Return(&models.Show{
		ShowID:          "show-1",
		StartsAt:        time.Now().Add(24 * time.Hour),
		DurationMinutes: 90,
	}, nil)
	return f, existing
}

func TestCancelPurchase(t *testing.T) {
	f, _ := cancellableFixture(t)
	ctx := context.Background()
	ids := []string{"t1", "t2"}

	cancelled := []models.Ticket{purchasedTicket("t1", "show-1", 10.0), purchasedTicket("t2", "show-1", 15.0)}
	for i := range cancelled {
		cancelled[i].Status = models.StatusCancelled
	}

	f.gateway.On("Refund", "pi_123", 25.0).Return(nil)
	f.tickets.On("CancelPurchasedTickets", ctx, ids, "user-1").Return(cancelled, nil)
	f.db.On("ApplyCancellation", ctx, mock.MatchedBy(func(o models.Order) bool {
		return o.Cancelled && o.CancellationInvoiceID != ""
	}), mock.MatchedBy(func(inv models.CancellationInvoice) bool {
		return inv.OrderID == "order-1" && inv.Total == 25.0 && len(inv.TicketIDs) == 2 && inv.InvoiceNumber != ""
	})).Return(nil)
	f.renderer.On("RenderCancellationInvoice", mock.AnythingOfType("models.CancellationInvoice"), cancelled).
		Return([]byte("pdf"), nil)
	f.store.On("Store", mock.AnythingOfType("string"), []byte("pdf")).Return("/docs/cancel.pdf", nil)
	f.db.On("SetCancellationDocumentPath", ctx, mock.AnythingOfType("string"), "/docs/cancel.pdf").Return(nil)

	result, err := f.svc.CancelPurchase(ctx, ids, "user-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Cancelled)
	assert.NotEmpty(t, result.CancellationInvoiceID)
	f.gateway.AssertExpectations(t)
	f.db.AssertExpectations(t)
}

func TestCancelPurchaseDuplicateIDsRefundOnce(t *testing.T) {
	f, _ := cancellableFixture(t)
	ctx := context.Background()

	cancelled := []models.Ticket{purchasedTicket("t1", "show-1", 10.0), purchasedTicket("t2", "show-1", 15.0)}
	for i := range cancelled {
		cancelled[i].Status = models.StatusCancelled
	}

	// a repeated id collapses; the refund covers each ticket exactly once
	f.gateway.On("Refund", "pi_123", 25.0).Return(nil)
	f.tickets.On("CancelPurchasedTickets", ctx, []string{"t1", "t2"}, "user-1").Return(cancelled, nil)
	f.db.On("ApplyCancellation", ctx, mock.AnythingOfType("models.Order"), mock.MatchedBy(func(inv models.CancellationInvoice) bool {
		return inv.Total == 25.0 && len(inv.TicketIDs) == 2
	})).Return(nil)
	f.renderer.On("RenderCancellationInvoice", mock.AnythingOfType("models.CancellationInvoice"), cancelled).
		Return([]byte("pdf"), nil)
	f.store.On("Store", mock.AnythingOfType("string"), []byte("pdf")).Return("/docs/cancel.pdf", nil)
	f.db.On("SetCancellationDocumentPath", ctx, mock.AnythingOfType("string"), "/docs/cancel.pdf").Return(nil)

	result, err := f.svc.CancelPurchase(ctx, []string{"t1", "t1", "t2"}, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	f.gateway.AssertNumberOfCalls(t, "Refund", 1)
	f.db.AssertExpectations(t)
}

func TestCancelPurchaseForeignTicketRejected(t *testing.T) {
	f, _ := cancellableFixture(t)
	ctx := context.Background()

	// t3 was purchased by the same user but through a different order
	foreign := purchasedTicket("t3", "show-1", 40.0)
	foreign.OrderID = "order-2"
	f.tickets.On("GetTicket", ctx, "t3").Return(&foreign, nil)

	_, err := f.svc.CancelPurchase(ctx, []string{"t1", "t3"}, "user-1")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	f.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	f.tickets.AssertNotCalled(t, "CancelPurchasedTickets", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelPurchaseRefundRejected(t *testing.T) {
	f, existing := cancellableFixture(t)
	ctx := context.Background()

	f.gateway.On("Refund", "pi_123", 25.0).Return(errors.New("card expired"))

	_, err := f.svc.CancelPurchase(ctx, []string{"t1", "t2"}, "user-1")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))

	// nothing was changed when the gateway said no
	assert.False(t, existing.Cancelled)
	f.tickets.AssertNotCalled(t, "CancelPurchasedTickets", mock.Anything, mock.Anything, mock.Anything)
	f.db.AssertNotCalled(t, "ApplyCancellation", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelPurchaseStartedShow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t1 := purchasedTicket("t1", "show-past", 10.0)
	f.tickets.On("GetTicket", ctx, "t1").Return(&t1, nil)
	f.db.On("GetOrderByID", ctx, "order-1").Return(&models.Order{
		OrderID:         "order-1",
		UserID:          "user-1",
		PaymentIntentID: "pi_123",
	}, nil)
	f.tickets.On("GetShow", ctx, "show-past").Return(&models.Show{
		ShowID:          "show-past",
		StartsAt:        time.Now().Add(-2 * time.Hour),
		DurationMinutes: 90,
	}, nil)

	_, err := f.svc.CancelPurchase(ctx, []string{"t1"}, "user-1")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	f.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

func TestCancelPurchaseAlreadyCancelled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t1 := purchasedTicket("t1", "show-1", 10.0)
	f.tickets.On("GetTicket", ctx, "t1").Return(&t1, nil)
	f.db.On("GetOrderByID", ctx, "order-1").Return(&models.Order{
		OrderID:   "order-1",
		UserID:    "user-1",
		Cancelled: true,
	}, nil)

	_, err := f.svc.CancelPurchase(ctx, []string{"t1"}, "user-1")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestCancelPurchaseOtherUsersOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t1 := purchasedTicket("t1", "show-1", 10.0)
	f.tickets.On("GetTicket", ctx, "t1").Return(&t1, nil)
	f.db.On("GetOrderByID", ctx, "order-1").Return(&models.Order{
		OrderID: "order-1",
		UserID:  "user-2",
	}, nil)

	_, err := f.svc.CancelPurchase(ctx, []string{"t1"}, "user-1")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestCancelPurchaseTicketWithoutOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	loose := purchasedTicket("t1", "show-1", 10.0)
	loose.OrderID = ""
	f.tickets.On("GetTicket", ctx, "t1").Return(&loose, nil)

	_, err := f.svc.CancelPurchase(ctx, []string{"t1"}, "user-1")
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestCancelPurchaseDocumentFailureIsFatal(t *testing.T) {
	f, _ := cancellableFixture(t)
	ctx := context.Background()
	ids := []string{"t1", "t2"}

	cancelled := []models.Ticket{purchasedTicket("t1", "show-1", 10.0), purchasedTicket("t2", "show-1", 15.0)}
	f.gateway.On("Refund", "pi_123", 25.0).Return(nil)
	f.tickets.On("CancelPurchasedTickets", ctx, ids, "user-1").Return(cancelled, nil)
	f.db.On("ApplyCancellation", ctx, mock.AnythingOfType("models.Order"), mock.AnythingOfType("models.CancellationInvoice")).Return(nil)
	f.renderer.On("RenderCancellationInvoice", mock.AnythingOfType("models.CancellationInvoice"), cancelled).
		Return(nil, errors.New("disk full"))

	// the cancellation is committed, only the document is missing
	result, err := f.svc.CancelPurchase(ctx, ids, "user-1")
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	require.NotNil(t, result)
	assert.True(t, result.Cancelled)
}

func TestGetCancellation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.db.On("GetOrderByID", ctx, "order-1").Return(&models.Order{
		OrderID:               "order-1",
		UserID:                "user-1",
		Cancelled:             true,
		CancellationInvoiceID: "inv-1",
	}, nil)
	f.db.On("GetCancellationInvoice", ctx, "inv-1").Return(&models.CancellationInvoice{
		InvoiceID:     "inv-1",
		InvoiceNumber: "cinv_1700000000_123456",
		OrderID:       "order-1",
		Total:         25.0,
	}, nil)

	invoice, err := f.svc.GetCancellation(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "cinv_1700000000_123456", invoice.InvoiceNumber)
}

func TestGetCancellationNotCancelled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.db.On("GetOrderByID", ctx, "order-1").Return(&models.Order{
		OrderID: "order-1",
		UserID:  "user-1",
	}, nil)

	_, err := f.svc.GetCancellation(ctx, "order-1")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	f.db.AssertNotCalled(t, "GetCancellationInvoice", mock.Anything, mock.Anything)
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	existing := &models.Order{OrderID: "order-1", UserID: "user-1", Total: 25.0}
	tickets := []models.Ticket{purchasedTicket("t1", "show-1", 10.0)}
	f.db.On("GetOrderByID", ctx, "order-1").Return(existing, nil)
	f.db.On("GetTicketsByOrder", ctx, "order-1").Return(tickets, nil)

	result, err := f.svc.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", result.Order.OrderID)
	assert.Len(t, result.Tickets, 1)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.db.On("GetOrderByID", ctx, "missing").Return(nil, sql.ErrNoRows)

	_, err := f.svc.GetOrder(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}
