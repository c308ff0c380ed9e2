package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/featureflags"
)

// Job types accepted on the trigger subscription.
const (
	JobCacheWarm  = "cache_warm"
	JobFlagUpdate = "flag_update"
)

var (
	// ErrUnknownJob is returned for messages with an unrecognised job type.
	ErrUnknownJob = errors.New("unknown job type")

	// ErrInvalidMessage is returned for messages that cannot be decoded.
	ErrInvalidMessage = errors.New("invalid job message")
)

// JobMessage is the payload of a trigger message.
type JobMessage struct {
	JobType string                          `json:"job_type"`
	Flags   *featureflags.FlagUpdateRequest `json:"flags,omitempty"`
}

// FlagWriter stores feature flag changes.
type FlagWriter interface {
	SetFlags(ctx context.Context, flags []*featureflags.Flag) error
}

// Dispatcher runs jobs described by trigger messages.
type Dispatcher struct {
	warmJob *WarmJob
	flags   FlagWriter
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher. flags may be nil, in which case flag
// updates are rejected.
func NewDispatcher(warmJob *WarmJob, flags FlagWriter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{warmJob: warmJob, flags: flags, logger: logger}
}

// Dispatch decodes data and runs the job it names.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch msg.JobType {
	case JobCacheWarm:
		return d.handleCacheWarm(ctx)
	case JobFlagUpdate:
		return d.handleFlagUpdate(ctx, msg.Flags)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (d *Dispatcher) handleCacheWarm(ctx context.Context) error {
	result := d.warmJob.Run(ctx)

	// Consider it successful if at most half of the lookups failed.
	succeeded := result.Refreshed + result.AlreadyFresh
	if result.Failed > succeeded {
		return fmt.Errorf("too many warm failures: %d/%d", result.Failed, result.Failed+succeeded)
	}
	return nil
}

func (d *Dispatcher) handleFlagUpdate(ctx context.Context, req *featureflags.FlagUpdateRequest) error {
	if d.flags == nil {
		return errors.New("feature flags are not writable")
	}
	if req == nil {
		return fmt.Errorf("%w: flag_update without flags", ErrInvalidMessage)
	}

	flags := req.Flags()
	if len(flags) == 0 {
		return fmt.Errorf("%w: flag_update without updates", ErrInvalidMessage)
	}

	d.logger.Info().
		Int("count", len(flags)).
		Str("reason", req.Reason).
		Msg("applying feature flag update")

	return d.flags.SetFlags(ctx, flags)
}

// PubSubHandler receives trigger messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if Acknowledge(ctx, h.dispatcher, msg.Data, h.logger.With().Str("message_id", msg.ID).Logger()) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Acknowledge dispatches data and reports whether the message should be
// acked. Messages that can never succeed are acked to stop redelivery; job
// failures are nacked so they are retried.
func Acknowledge(ctx context.Context, d *Dispatcher, data []byte, logger zerolog.Logger) bool {
	start := time.Now()

	err := d.Dispatch(ctx, data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed successfully")
		return true
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("dropping job message")
		return true
	default:
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
		return false
	}
}
