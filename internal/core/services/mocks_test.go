package services

import (
	"context"
	"sync"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"

	"github.com/stretchr/testify/mock"
)

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyCredential(ctx context.Context, token string) (*ports.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Principal), args.Error(1)
}

func (m *MockIdentityProvider) GetIdentity(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

type MockStreamStore struct {
	mock.Mock
}

func (m *MockStreamStore) CreateStreamRecord(ctx context.Context, rec *domain.StreamRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStreamStore) FindStreamByKey(ctx context.Context, key domain.StreamKey) (*domain.StreamRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StreamRecord), args.Error(1)
}

func (m *MockStreamStore) UpdateStreamStatus(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, startedAt, endedAt int64) error {
	args := m.Called(ctx, key, status, startedAt, endedAt)
	return args.Error(0)
}

func (m *MockStreamStore) IsAuthorizedViewer(ctx context.Context, owner, viewer domain.UserID) (bool, error) {
	args := m.Called(ctx, owner, viewer)
	return args.Bool(0), args.Error(1)
}

type MockRecordingService struct {
	mock.Mock
}

func (m *MockRecordingService) Start(ctx context.Context, key domain.StreamKey, owner domain.UserID) (bool, error) {
	args := m.Called(ctx, key, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordingService) Stop(ctx context.Context, key domain.StreamKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// captureSink records delivered events in per-connection order, which is the
// ordering guarantee the broadcaster promises.
type captureSink struct {
	mu      sync.Mutex
	perConn map[domain.ConnectionID][]any
	global  []any
}

func newCaptureSink() *captureSink {
	return &captureSink{perConn: make(map[domain.ConnectionID][]any)}
}

func (s *captureSink) SendTo(connID domain.ConnectionID, event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perConn[connID] = append(s.perConn[connID], event)
}

func (s *captureSink) SendAll(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = append(s.global, event)
}

func (s *captureSink) eventsFor(connID domain.ConnectionID) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.perConn[connID]))
	copy(out, s.perConn[connID])
	return out
}

func (s *captureSink) globalEvents() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.global))
	copy(out, s.global)
	return out
}

var _ ports.EventSink = (*captureSink)(nil)
