// Package dispatch composes and delivers highlight notifications.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"highlight_bot/internal/cooldown"
	"highlight_bot/internal/model"
)

// Sentinel errors a Transport implementation wraps so delivery failures
// can be classified.
var (
	// ErrUnreachable marks a permanent per-target failure: the user has
	// DMs disabled or the bot lacks permission to contact them.
	ErrUnreachable = errors.New("user unreachable")

	// ErrRateLimited marks a rate-limited response from the platform.
	ErrRateLimited = errors.New("rate limited")
)

// Transport is the outbound platform interface the dispatcher depends on.
type Transport interface {
	SendDirectMessage(ctx context.Context, userID int64, content string) error
	FetchContext(ctx context.Context, channelID, messageID int64, before, after int) ([]model.Message, error)
}

// Outcome is the terminal state of one notification delivery.
type Outcome int

// Terminal delivery states.
const (
	OutcomeDelivered Outcome = iota
	OutcomeFailedPermanent
	OutcomeFailedExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailedPermanent:
		return "failed_permanent"
	default:
		return "failed_exhausted"
	}
}

// Dispatcher sends highlight notifications over the transport, retrying
// transient failures with bounded exponential backoff.
type Dispatcher struct {
	transport Transport
	tracker   *cooldown.Tracker
	log       *slog.Logger

	contextBefore int
	contextAfter  int
	maxRetries    uint64
	baseDelay     time.Duration
}

// New creates a Dispatcher. The context window sizes control how many
// surrounding messages are included in each notification.
func New(transport Transport, tracker *cooldown.Tracker, before, after int, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport:     transport,
		tracker:       tracker,
		log:           log,
		contextBefore: before,
		contextAfter:  after,
		maxRetries:    3,
		baseDelay:     500 * time.Millisecond,
	}
}

// SetBackoff overrides the retry policy (useful for testing).
func (d *Dispatcher) SetBackoff(maxRetries uint64, baseDelay time.Duration) {
	d.maxRetries = maxRetries
	d.baseDelay = baseDelay
}

// Notify sends one direct message to ownerID about the triggering message
// and its matched keywords. It always reaches a terminal state; failures
// are logged and never propagate to the caller.
func (d *Dispatcher) Notify(ctx context.Context, ownerID int64, msg model.Message, keywords []string) Outcome {
	surrounding, err := d.transport.FetchContext(ctx, msg.ChannelID, msg.ID, d.contextBefore, d.contextAfter)
	if err != nil {
		// Context is best-effort: deliver the notification without it.
		d.log.Debug("fetch context failed",
			"channel_id", msg.ChannelID, "message_id", msg.ID, "error", err)
		surrounding = nil
	}

	content := FormatNotification(msg, surrounding, keywords)

	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(d.baseDelay))
	sendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := d.transport.SendDirectMessage(ctx, ownerID, content)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnreachable) {
			return err
		}
		return retry.RetryableError(err)
	})

	switch {
	case sendErr == nil:
		return OutcomeDelivered
	case errors.Is(sendErr, ErrUnreachable):
		d.tracker.MarkUnreachable(ownerID, time.Now())
		d.log.Info("user unreachable, suppressing for one window",
			"user_id", ownerID, "error", sendErr)
		return OutcomeFailedPermanent
	default:
		d.log.Error("notification delivery exhausted",
			"user_id", ownerID, "message_id", msg.ID, "error", sendErr)
		return OutcomeFailedExhausted
	}
}
