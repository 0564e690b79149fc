package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/notify"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// sender is the part of *azservicebus.Sender the notifier uses
type sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// ServiceBusNotifier publishes notifications to an Azure Service Bus queue
type ServiceBusNotifier struct {
	client    *azservicebus.Client
	sender    sender
	queueName string
	now       func() time.Time
}

// NewServiceBusNotifier creates a notifier for the configured queue
func NewServiceBusNotifier(cfg config.AzureConfig) (*ServiceBusNotifier, error) {
	if cfg.QueueConnStr == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	s, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &ServiceBusNotifier{
		client:    client,
		sender:    s,
		queueName: cfg.QueueName,
		now:       time.Now,
	}, nil
}

// Notify implements notify.Notifier. The notification key becomes the
// MessageID so duplicate detection on the queue collapses repeats.
func (s *ServiceBusNotifier) Notify(ctx context.Context, n notify.Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = s.now().UTC()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	messageID := strconv.FormatUint(uint64(n.Key), 10)
	contentType := "application/json"
	subject := n.Template
	msg := &azservicebus.Message{
		Body:        data,
		MessageID:   &messageID,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"source":   "eventwave",
			"event_id": n.EventID,
			"time":     n.SentAt.Format(time.RFC3339),
		},
	}

	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to send notification to %s: %w", s.queueName, err)
	}
	return nil
}

// Close closes the sender and the client
func (s *ServiceBusNotifier) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}
