package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// PubSubHandler runs jobs named by messages on a Pub/Sub subscription.
type PubSubHandler struct {
	client     *pubsub.Client
	subscriber *pubsub.Subscriber
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	sub := client.Subscriber(cfg.SubscriptionName)
	// A refresh touches every region, so messages are handled one at a time.
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:     client,
		subscriber: sub,
		dispatcher: NewDispatcher(cfg.RefreshJob, cfg.Logger),
		logger:     cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start blocks receiving messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Msg("starting pubsub handler")
	return h.subscriber.Receive(ctx, h.handle)
}

func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle acks on success and on permanent errors, and nacks everything else
// for redelivery.
func (h *PubSubHandler) handle(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()
	log := h.logger.With().
		Str("message_id", msg.ID).
		Time("published_at", msg.PublishTime).
		Logger()

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case err == nil:
		log.Info().Dur("duration", time.Since(start)).Msg("job completed")
		msg.Ack()
	case Permanent(err):
		log.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	default:
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
		msg.Nack()
	}
}
