package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anvik/docstream/internal/adapter/utils"
	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/internal/metrics"
	"github.com/anvik/docstream/pkg/logger_i"
	"github.com/nats-io/nats.go"
)

var (
	poolLogger      *logger_i.Logger
	deliveryChannel chan Delivery
)

type natsDelivery struct {
	msg *nats.Msg
}

func (d natsDelivery) Data() []byte {
	return d.msg.Data
}

func (d natsDelivery) Deliveries() int {
	meta, err := d.msg.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}

func (d natsDelivery) Ack() error {
	return d.msg.Ack()
}

func (d natsDelivery) Nak(delay time.Duration) error {
	return d.msg.NakWithDelay(delay)
}

// StartWorkerPool runs the subscription slots: one fetch loop feeding a fixed
// set of workers. Documents are independent, so concurrent slots are safe by
// construction. The pool drains in-flight deliveries on shutdown; anything
// still unacked is redelivered later.
func StartWorkerPool(ctx context.Context, sub *nats.Subscription, svc Service, waitGroup *sync.WaitGroup) {
	poolLogger = logger_i.NewLogger("WorkerPool")
	deliveryChannel = make(chan Delivery, config.FetchBatchSize)

	poolLogger.Info("Starting worker pool", "workers", config.ProcessorWorkerCount)
	for i := 0; i < config.ProcessorWorkerCount; i++ {
		waitGroup.Add(1)
		go worker(svc, waitGroup)
	}
	go fetchLoop(ctx, sub)
}

func fetchLoop(ctx context.Context, sub *nats.Subscription) {
	defer close(deliveryChannel)

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(config.FetchBatchSize, nats.MaxWait(config.FetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			poolLogger.Error("Fetch failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			metrics.IncrementEventsInFlight()
			deliveryChannel <- natsDelivery{msg: msg}
		}
	}
}

func worker(svc Service, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()

	for delivery := range deliveryChannel {
		// Fresh context per message: shutdown stops fetching, not processing.
		traceCtx := context.WithValue(context.Background(), config.TRACE_ID_KEY, utils.GetNewUUID())
		processCtx, cancel := context.WithTimeout(traceCtx, config.ProcessTimeout)
		svc.HandleDelivery(processCtx, delivery)
		cancel()
		metrics.DecrementEventsInFlight()
	}
}
