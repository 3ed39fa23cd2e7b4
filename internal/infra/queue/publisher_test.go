package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildPublishing(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := buildPublishing(map[string]any{"task_id": 7, "type": "task.created"}, now)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, now, msg.Timestamp)
	_, err = uuid.Parse(msg.MessageId)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"task_id":7,"type":"task.created"}`, string(msg.Body))
}

func TestBuildPublishing_Unmarshalable(t *testing.T) {
	_, err := buildPublishing(make(chan int), time.Now())
	assert.Error(t, err)
}

func TestNewPublisher_NilConnection(t *testing.T) {
	_, err := NewPublisher(nil, zap.NewNop())
	assert.Error(t, err)
}
