package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/nats-io/nats.go"
)

var (
	instance *Client
	once     sync.Once
	logger   *logger_i.Logger
)

// Client owns the NATS connection and the DOCUMENTS stream. The stream covers
// both the processing subject and the quarantine subject, so a quarantined
// message stays durable and inspectable.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

func GetQueueClient(ctx context.Context) *Client {
	once.Do(func() {
		logger = logger_i.NewLogger("Queue")
		instance = newClient(ctx)
	})
	return instance
}

func newClient(ctx context.Context) *Client {
	url := config.EnvOr("NATS_URL", config.NatsURL)

	conn, err := nats.Connect(url,
		nats.Name("docstream"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logger.Error("could not connect to NATS", "url", url, "error", err)
		return nil
	}

	js, err := conn.JetStream()
	if err != nil {
		logger.Error("could not get JetStream context", "error", err)
		return nil
	}

	if err := ensureStream(js); err != nil {
		logger.Error("could not ensure stream", "stream", config.StreamName, "error", err)
		return nil
	}

	logger.Info("Queue connected", "url", url)
	go closeOnDone(ctx, conn)
	return &Client{conn: conn, js: js}
}

func ensureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  []string{config.ProcessSubject, config.QuarantineSubject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
	})
	if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil
	}
	return err
}

func closeOnDone(ctx context.Context, conn *nats.Conn) {
	<-ctx.Done()
	logger.Info("Draining NATS connection")
	if err := conn.Drain(); err != nil {
		logger.Error("Error draining NATS connection", "error", err)
	}
}

func (c *Client) PublishDocumentEvent(ctx context.Context, event docmodel.DocumentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal document event: %w", err)
	}
	if _, err := c.js.Publish(config.ProcessSubject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", config.ProcessSubject, err)
	}
	return nil
}

// Quarantine republishes a poison message to the inspection subject with the
// failure reason attached, so an operator can replay it by hand.
func (c *Client) Quarantine(ctx context.Context, data []byte, reason string) error {
	msg := nats.NewMsg(config.QuarantineSubject)
	msg.Data = data
	msg.Header.Set("Failure-Reason", reason)
	if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", config.QuarantineSubject, err)
	}
	return nil
}

// Subscribe creates the durable pull consumer for document processing.
// Delivery is at-least-once; MaxDeliver bounds how often a nacked message
// comes back.
func (c *Client) Subscribe() (*nats.Subscription, error) {
	sub, err := c.js.PullSubscribe(config.ProcessSubject, config.ConsumerDurableName,
		nats.AckExplicit(),
		nats.AckWait(config.AckWait),
		nats.MaxDeliver(config.MaxDeliverAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", config.ProcessSubject, err)
	}
	return sub, nil
}

func (c *Client) Probe() bool {
	return c.conn != nil && c.conn.Status() == nats.CONNECTED
}
