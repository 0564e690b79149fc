package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/models"
	"example.com/eventwave/internal/notify"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []*azservicebus.Message
	err    error
	closed bool
}

func (f *fakeSender) SendMessage(_ context.Context, m *azservicebus.Message, _ *azservicebus.SendMessageOptions) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSender) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestNotifyPublishesJSON(t *testing.T) {
	fs := &fakeSender{}
	sentAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	n := &ServiceBusNotifier{sender: fs, queueName: "q", now: func() time.Time { return sentAt }}

	alert := notify.NearbyAlert(models.Event{ID: "tm1", Title: "Jazz", VenueName: "Olympia"}, 1.2)
	require.NoError(t, n.Notify(context.Background(), alert))
	require.Len(t, fs.sent, 1)

	msg := fs.sent[0]
	require.NotNil(t, msg.MessageID)
	assert.Equal(t, strconv.FormatUint(uint64(notify.Key("tm1")), 10), *msg.MessageID)
	assert.Equal(t, notify.TemplateNearby, *msg.Subject)
	assert.Equal(t, "tm1", msg.ApplicationProperties["event_id"])

	var decoded notify.Notification
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, alert.Body, decoded.Body)
	assert.True(t, sentAt.Equal(decoded.SentAt))

	require.NoError(t, n.Close())
	assert.True(t, fs.closed)
}

func TestNotifyWrapsSendErrors(t *testing.T) {
	n := &ServiceBusNotifier{sender: &fakeSender{err: errors.New("link detached")}, queueName: "q", now: time.Now}

	err := n.Notify(context.Background(), notify.Notification{EventID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link detached")
}

func TestNewServiceBusNotifierRequiresConnectionString(t *testing.T) {
	_, err := NewServiceBusNotifier(config.AzureConfig{QueueName: "q"})
	assert.Error(t, err)
}
