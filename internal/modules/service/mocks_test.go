package service

import (
	"context"
	"time"

	"github.com/evotodo/todo-api/internal/infra/blob"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/evotodo/todo-api/internal/modules/repo"
	"github.com/stretchr/testify/mock"
)

// MockTaskRepo is a mock implementation of repo.TaskRepo
type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) Create(ctx context.Context, t *model.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepo) Get(ctx context.Context, userID string, id int64) (*model.Task, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepo) List(ctx context.Context, f repo.TaskFilter) ([]model.Task, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Task), args.Get(1).(int64), args.Error(2)
}

func (m *MockTaskRepo) ListAll(ctx context.Context, userID string) ([]model.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepo) Update(ctx context.Context, userID string, id int64, mutate repo.TaskMutator) (*model.Task, error) {
	args := m.Called(ctx, userID, id, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepo) Delete(ctx context.Context, userID string, id int64) (int64, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepo) BulkDelete(ctx context.Context, userID string, ids []int64) (int64, error) {
	args := m.Called(ctx, userID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepo) BulkSetCompleted(ctx context.Context, userID string, ids []int64, completed bool) (int64, error) {
	args := m.Called(ctx, userID, ids, completed)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepo) CountByStatus(ctx context.Context, userID string) (int64, int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

// MockConversationRepo is a mock implementation of repo.ConversationRepo
type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) Create(ctx context.Context, c *model.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationRepo) Get(ctx context.Context, userID string, id int64) (*model.Conversation, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *MockConversationRepo) List(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

func (m *MockConversationRepo) Delete(ctx context.Context, userID string, id int64) (int64, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConversationRepo) AppendMessage(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockConversationRepo) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]model.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}) error {
	args := m.Called(ctx, exchange, routingKey, data)
	return args.Error(0)
}

// MockSnapshotStore is a mock implementation of SnapshotStore
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) UploadBytes(ctx context.Context, keyPrefix, ext, contentType string, data []byte) (*blob.UploadedMeta, error) {
	args := m.Called(ctx, keyPrefix, ext, contentType, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blob.UploadedMeta), args.Error(1)
}

func (m *MockSnapshotStore) PresignGet(ctx context.Context, key string, expire time.Duration) (string, error) {
	args := m.Called(ctx, key, expire)
	return args.String(0), args.Error(1)
}
