package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkbook/studio-admin/cmd/mainconfig"
	appconfig "github.com/inkbook/studio-admin/internal/config"
	"github.com/inkbook/studio-admin/internal/events"
	"github.com/inkbook/studio-admin/pkg/logging"
)

// EventPipeline is the wired event path: a recorder for handlers and, when
// an outbox exists, the deliverer that drains it to the transport.
type EventPipeline struct {
	Recorder  events.Recorder
	Deliverer *events.Deliverer
	close     func() error
}

// Close releases the transport.
func (p *EventPipeline) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// BuildEventPublisher selects the outbox transport from EVENT_TRANSPORT.
func BuildEventPublisher(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (events.DeliveryHandler, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.EventTransport)) {
	case "", "log":
		return events.NewLogPublisher(logger), noop, nil
	case "sqs":
		if strings.TrimSpace(cfg.EventsQueueURL) == "" {
			return nil, nil, fmt.Errorf("bootstrap: EVENTS_QUEUE_URL is required for the sqs transport")
		}
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		logger.Info("events publish to sqs", "queue_url", cfg.EventsQueueURL)
		return events.NewSQSPublisher(mainconfig.NewSQSClient(awsCfg, cfg), cfg.EventsQueueURL), noop, nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("bootstrap: KAFKA_BROKERS is required for the kafka transport")
		}
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers)
		logger.Info("events publish to kafka", "brokers", cfg.KafkaBrokers)
		return publisher, publisher.Close, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown EVENT_TRANSPORT %q", cfg.EventTransport)
	}
}

// BuildEventPipeline records events in the Postgres outbox when a pool is
// available and delivers them in the background; without a pool events go
// straight to the transport.
func BuildEventPipeline(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (*EventPipeline, error) {
	if logger == nil {
		logger = logging.Default()
	}
	publisher, closeFn, err := BuildEventPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return &EventPipeline{Recorder: events.NewDirectRecorder(publisher), close: closeFn}, nil
	}

	store := events.NewOutboxStore(pool)
	deliverer := events.NewDeliverer(store, publisher, logger)
	if cfg.OutboxBatchSize > 0 {
		deliverer = deliverer.WithBatchSize(int32(cfg.OutboxBatchSize))
	}
	if cfg.OutboxPollInterval > 0 {
		deliverer = deliverer.WithInterval(cfg.OutboxPollInterval)
	}
	return &EventPipeline{Recorder: store, Deliverer: deliverer, close: closeFn}, nil
}
