package mocks

import (
	"context"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockTabularStore is a mock implementation of ports.TabularStore
type MockTabularStore struct {
	mock.Mock
}

func NewMockTabularStore() *MockTabularStore {
	return &MockTabularStore{}
}

func (m *MockTabularStore) ReadAll(ctx context.Context) ([]domain.Row, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Row), args.Error(1)
}

func (m *MockTabularStore) WriteAt(ctx context.Context, position int, row domain.Row) error {
	args := m.Called(ctx, position, row)
	return args.Error(0)
}

func (m *MockTabularStore) Append(ctx context.Context, row domain.Row) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockTabularStore) EnsureHeader(ctx context.Context, columns []string) error {
	args := m.Called(ctx, columns)
	return args.Error(0)
}

// MockTallyService is a mock implementation of ports.TallyService
type MockTallyService struct {
	mock.Mock
}

func NewMockTallyService() *MockTallyService {
	return &MockTallyService{}
}

func (m *MockTallyService) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTallyService) Today() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockTallyService) Records(ctx context.Context) (*domain.RecordSet, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecordSet), args.Error(1)
}

func (m *MockTallyService) Defaults(ctx context.Context, date string) (*ports.DayView, *domain.RecordSet, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*ports.DayView), args.Get(1).(*domain.RecordSet), args.Error(2)
}

func (m *MockTallyService) Submit(ctx context.Context, params ports.SubmitParams) (*ports.SubmitResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.SubmitResult), args.Error(1)
}

func (m *MockTallyService) Summary(ctx context.Context) (*domain.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Summary), args.Error(1)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockTallyMetrics is a mock implementation of ports.TallyMetrics
type MockTallyMetrics struct {
	mock.Mock
}

func NewMockTallyMetrics() *MockTallyMetrics {
	return &MockTallyMetrics{}
}

func (m *MockTallyMetrics) ObserveSubmission(action string) {
	m.Called(action)
}

func (m *MockTallyMetrics) ObserveValidationFailure() {
	m.Called()
}
