package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/session"
)

type mockDeliveryRepo struct {
	mock.Mock
}

func (m *mockDeliveryRepo) CreateRider(ctx context.Context, r *domain.Rider) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockDeliveryRepo) GetRider(ctx context.Context, id int64) (domain.Rider, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Rider), args.Error(1)
}

func (m *mockDeliveryRepo) SetRiderStatus(ctx context.Context, id int64, status domain.RiderStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockDeliveryRepo) UpdateLocation(ctx context.Context, riderID int64, loc domain.RiderLocation) (bool, error) {
	args := m.Called(ctx, riderID, loc)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeliveryRepo) CreateDelivery(ctx context.Context, d *domain.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDeliveryRepo) GetDelivery(ctx context.Context, id int64) (domain.Delivery, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) GetDeliveryByOrder(ctx context.Context, orderID int64) (domain.Delivery, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(domain.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) TransitionDeliveryTx(ctx context.Context, id int64, to domain.DeliveryStatus) (domain.Delivery, error) {
	args := m.Called(ctx, id, to)
	return args.Get(0).(domain.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) HasUnresolvedDelivery(ctx context.Context, riderID int64) (bool, error) {
	args := m.Called(ctx, riderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeliveryRepo) ActiveDeliveries(ctx context.Context) ([]domain.Delivery, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Delivery), args.Error(1)
}

func (m *mockDeliveryRepo) OrderRef(ctx context.Context, orderID int64) (int64, string, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.String(1), args.Error(2)
}

type mockOrdersRepo struct {
	mock.Mock
}

func (m *mockOrdersRepo) Create(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrdersRepo) GetByNumber(ctx context.Context, restaurantID int64, number string) (domain.Order, error) {
	args := m.Called(ctx, restaurantID, number)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockOrdersRepo) ListActive(ctx context.Context, restaurantID int64) ([]domain.Order, error) {
	args := m.Called(ctx, restaurantID)
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrdersRepo) TransitionTx(ctx context.Context, restaurantID int64, number string, to domain.OrderStatus, changedBy string) (domain.Order, error) {
	args := m.Called(ctx, restaurantID, number, to, changedBy)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *mockOrdersRepo) Timeline(ctx context.Context, orderID int64, limit int) ([]domain.StatusChange, error) {
	args := m.Called(ctx, orderID, limit)
	return args.Get(0).([]domain.StatusChange), args.Error(1)
}

func newTestService(repo *mockDeliveryRepo, orders *mockOrdersRepo) *DeliveryService {
	return New(repo, orders, nil, nil, nil, logger.New("test"), Config{})
}

func managerSession() *session.Session {
	return session.New(1, "tester", session.RoleManager)
}

func TestIngestSampleConvertsSpeedToKMH(t *testing.T) {
	repo := new(mockDeliveryRepo)
	svc := newTestService(repo, new(mockOrdersRepo))

	repo.On("GetRider", mock.Anything, int64(7)).Return(domain.Rider{ID: 7, Status: domain.RiderBusy}, nil)
	repo.On("UpdateLocation", mock.Anything, int64(7), mock.MatchedBy(func(loc domain.RiderLocation) bool {
		return loc.SpeedKMH != nil && *loc.SpeedKMH == 36.0
	})).Return(true, nil)

	speed := 10.0 // m/s
	err := svc.IngestSample(context.Background(), managerSession(), domain.LocationSample{
		RiderID:         7,
		Latitude:        40.7,
		Longitude:       -73.9,
		SpeedMS:         &speed,
		ClientTimestamp: time.Now(),
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIngestSampleKeepsUnknownSpeedNull(t *testing.T) {
	repo := new(mockDeliveryRepo)
	svc := newTestService(repo, new(mockOrdersRepo))

	repo.On("GetRider", mock.Anything, int64(7)).Return(domain.Rider{ID: 7, Status: domain.RiderOnline}, nil)
	repo.On("UpdateLocation", mock.Anything, int64(7), mock.MatchedBy(func(loc domain.RiderLocation) bool {
		return loc.SpeedKMH == nil
	})).Return(true, nil)

	err := svc.IngestSample(context.Background(), managerSession(), domain.LocationSample{
		RiderID:         7,
		Latitude:        40.7,
		Longitude:       -73.9,
		ClientTimestamp: time.Now(),
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIngestSampleStaleFixIsSilentlyIgnored(t *testing.T) {
	repo := new(mockDeliveryRepo)
	svc := newTestService(repo, new(mockOrdersRepo))

	repo.On("GetRider", mock.Anything, int64(7)).Return(domain.Rider{ID: 7, Status: domain.RiderBusy}, nil)
	repo.On("UpdateLocation", mock.Anything, int64(7), mock.Anything).Return(false, nil)

	err := svc.IngestSample(context.Background(), managerSession(), domain.LocationSample{
		RiderID:         7,
		Latitude:        40.7,
		Longitude:       -73.9,
		ClientTimestamp: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIngestSampleRejectsOfflineRider(t *testing.T) {
	repo := new(mockDeliveryRepo)
	svc := newTestService(repo, new(mockOrdersRepo))

	repo.On("GetRider", mock.Anything, int64(7)).Return(domain.Rider{ID: 7, Status: domain.RiderOffline}, nil)

	err := svc.IngestSample(context.Background(), managerSession(), domain.LocationSample{
		RiderID: 7, Latitude: 40.7, Longitude: -73.9,
	})
	require.ErrorIs(t, err, ErrValidation)
	repo.AssertNotCalled(t, "UpdateLocation", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestSampleRejectsOutOfRangeCoordinates(t *testing.T) {
	svc := newTestService(new(mockDeliveryRepo), new(mockOrdersRepo))

	err := svc.IngestSample(context.Background(), managerSession(), domain.LocationSample{
		RiderID: 7, Latitude: 95, Longitude: 0,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestIngestSampleRequiresCapability(t *testing.T) {
	svc := newTestService(new(mockDeliveryRepo), new(mockOrdersRepo))

	sess := session.New(1, "waiter", session.RoleWaiter)
	err := svc.IngestSample(context.Background(), sess, domain.LocationSample{
		RiderID: 7, Latitude: 40.7, Longitude: -73.9,
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestBusyRiderCannotGoOffline(t *testing.T) {
	repo := new(mockDeliveryRepo)
	svc := newTestService(repo, new(mockOrdersRepo))

	repo.On("GetRider", mock.Anything, int64(3)).Return(domain.Rider{ID: 3, Status: domain.RiderBusy}, nil)

	_, err := svc.SetAvailability(context.Background(), managerSession(), 3, false)
	require.ErrorIs(t, err, ErrRiderBusy)
	repo.AssertNotCalled(t, "SetRiderStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnlineRiderWithOpenDeliveryCannotGoOffline(t *testing.T) {
	repo := new(mockDeliveryRepo)
	svc := newTestService(repo, new(mockOrdersRepo))

	repo.On("GetRider", mock.Anything, int64(3)).Return(domain.Rider{ID: 3, Status: domain.RiderOnline}, nil)
	repo.On("HasUnresolvedDelivery", mock.Anything, int64(3)).Return(true, nil)

	_, err := svc.SetAvailability(context.Background(), managerSession(), 3, false)
	require.ErrorIs(t, err, ErrRiderBusy)
}

func TestSetAvailabilityIsIdempotent(t *testing.T) {
	repo := new(mockDeliveryRepo)
	svc := newTestService(repo, new(mockOrdersRepo))

	repo.On("GetRider", mock.Anything, int64(3)).Return(domain.Rider{ID: 3, Status: domain.RiderOnline}, nil)

	rider, err := svc.SetAvailability(context.Background(), managerSession(), 3, true)
	require.NoError(t, err)
	require.Equal(t, domain.RiderOnline, rider.Status)
	repo.AssertNotCalled(t, "SetRiderStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignRiderRejectsDineInOrder(t *testing.T) {
	repo := new(mockDeliveryRepo)
	orders := new(mockOrdersRepo)
	svc := newTestService(repo, orders)

	table := 4
	orders.On("GetByNumber", mock.Anything, int64(1), "ORD_20250601_001").
		Return(domain.Order{ID: 10, Number: "ORD_20250601_001", TableNumber: &table}, nil)

	_, err := svc.AssignRider(context.Background(), managerSession(), domain.AssignDeliveryRequest{
		OrderNumber: "ORD_20250601_001", RiderID: 3,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAssignRiderRequiresOnlineRider(t *testing.T) {
	repo := new(mockDeliveryRepo)
	orders := new(mockOrdersRepo)
	svc := newTestService(repo, orders)

	orders.On("GetByNumber", mock.Anything, int64(1), "ORD_20250601_001").
		Return(domain.Order{ID: 10, Number: "ORD_20250601_001"}, nil)
	repo.On("GetRider", mock.Anything, int64(3)).Return(domain.Rider{ID: 3, Status: domain.RiderBusy}, nil)

	_, err := svc.AssignRider(context.Background(), managerSession(), domain.AssignDeliveryRequest{
		OrderNumber: "ORD_20250601_001", RiderID: 3,
	})
	require.ErrorIs(t, err, ErrRiderUnavailable)
	repo.AssertNotCalled(t, "CreateDelivery", mock.Anything, mock.Anything)
}

func TestAssignRiderMarksRiderBusy(t *testing.T) {
	repo := new(mockDeliveryRepo)
	orders := new(mockOrdersRepo)
	svc := newTestService(repo, orders)

	orders.On("GetByNumber", mock.Anything, int64(1), "ORD_20250601_001").
		Return(domain.Order{ID: 10, Number: "ORD_20250601_001"}, nil)
	repo.On("GetRider", mock.Anything, int64(3)).Return(domain.Rider{ID: 3, Status: domain.RiderOnline}, nil)
	repo.On("CreateDelivery", mock.Anything, mock.Anything).Return(nil)
	repo.On("SetRiderStatus", mock.Anything, int64(3), domain.RiderBusy).Return(nil)

	d, err := svc.AssignRider(context.Background(), managerSession(), domain.AssignDeliveryRequest{
		OrderNumber: "ORD_20250601_001", RiderID: 3,
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), d.OrderID)
	repo.AssertExpectations(t)
}

func TestDeliveredReleasesRiderAndServesOrder(t *testing.T) {
	repo := new(mockDeliveryRepo)
	orders := new(mockOrdersRepo)
	svc := newTestService(repo, orders)

	riderID := int64(3)
	repo.On("TransitionDeliveryTx", mock.Anything, int64(5), domain.DeliveryDelivered).
		Return(domain.Delivery{ID: 5, OrderID: 10, RiderID: &riderID, Status: domain.DeliveryDelivered}, nil)
	repo.On("SetRiderStatus", mock.Anything, riderID, domain.RiderOnline).Return(nil)
	repo.On("OrderRef", mock.Anything, int64(10)).Return(int64(1), "ORD_20250601_001", nil)
	orders.On("TransitionTx", mock.Anything, int64(1), "ORD_20250601_001", domain.StatusServed, "delivery").
		Return(domain.Order{Status: domain.StatusServed}, nil)

	d, err := svc.UpdateDeliveryStatus(context.Background(), managerSession(), 5, domain.DeliveryDelivered)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryDelivered, d.Status)
	repo.AssertExpectations(t)
	orders.AssertExpectations(t)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *capturePublisher) Publish(_ context.Context, ev domain.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) byTable(table string) []domain.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.ChangeEvent
	for _, ev := range p.events {
		if ev.Table == table {
			out = append(out, ev)
		}
	}
	return out
}

func TestAssignRiderPublishesBusyStatusChange(t *testing.T) {
	repo := new(mockDeliveryRepo)
	orders := new(mockOrdersRepo)
	pub := new(capturePublisher)
	svc := New(repo, orders, nil, pub, nil, logger.New("test"), Config{})

	orders.On("GetByNumber", mock.Anything, int64(1), "ORD_20250601_001").
		Return(domain.Order{ID: 10, Number: "ORD_20250601_001"}, nil)
	repo.On("GetRider", mock.Anything, int64(3)).Return(domain.Rider{ID: 3, Status: domain.RiderOnline}, nil)
	repo.On("CreateDelivery", mock.Anything, mock.Anything).Return(nil)
	repo.On("SetRiderStatus", mock.Anything, int64(3), domain.RiderBusy).Return(nil)

	_, err := svc.AssignRider(context.Background(), managerSession(), domain.AssignDeliveryRequest{
		OrderNumber: "ORD_20250601_001", RiderID: 3,
	})
	require.NoError(t, err)

	riders := pub.byTable("riders")
	require.Len(t, riders, 1)
	require.Equal(t, string(domain.RiderBusy), riders[0].Row["status"])
	require.Len(t, pub.byTable("deliveries"), 1)
}

func TestDeliveredPublishesRiderAndOrderChanges(t *testing.T) {
	repo := new(mockDeliveryRepo)
	orders := new(mockOrdersRepo)
	pub := new(capturePublisher)
	svc := New(repo, orders, nil, pub, nil, logger.New("test"), Config{})

	riderID := int64(3)
	repo.On("TransitionDeliveryTx", mock.Anything, int64(5), domain.DeliveryDelivered).
		Return(domain.Delivery{ID: 5, OrderID: 10, RiderID: &riderID, Status: domain.DeliveryDelivered}, nil)
	repo.On("SetRiderStatus", mock.Anything, riderID, domain.RiderOnline).Return(nil)
	repo.On("OrderRef", mock.Anything, int64(10)).Return(int64(1), "ORD_20250601_001", nil)
	orders.On("TransitionTx", mock.Anything, int64(1), "ORD_20250601_001", domain.StatusServed, "delivery").
		Return(domain.Order{ID: 10, RestaurantID: 1, Number: "ORD_20250601_001", Status: domain.StatusServed}, nil)

	_, err := svc.UpdateDeliveryStatus(context.Background(), managerSession(), 5, domain.DeliveryDelivered)
	require.NoError(t, err)

	riders := pub.byTable("riders")
	require.Len(t, riders, 1)
	require.Equal(t, string(domain.RiderOnline), riders[0].Row["status"])

	ordersEvents := pub.byTable("orders")
	require.Len(t, ordersEvents, 1)
	require.Equal(t, string(domain.StatusServed), ordersEvents[0].Row["status"])
	require.Len(t, pub.byTable("deliveries"), 1)
}
