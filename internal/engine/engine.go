// Package engine runs the per-message matching and notification pipeline.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"highlight_bot/internal/cooldown"
	"highlight_bot/internal/dispatch"
	"highlight_bot/internal/eligibility"
	"highlight_bot/internal/index"
	"highlight_bot/internal/matcher"
	"highlight_bot/internal/metrics"
	"highlight_bot/internal/model"
)

// Engine consumes inbound messages and drives them through matching,
// eligibility, cooldown, and dispatch. Each message runs as its own task
// so a slow delivery never stalls matching for the next message.
type Engine struct {
	idx        *index.Index
	filter     *eligibility.Filter
	tracker    *cooldown.Tracker
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	log        *slog.Logger
	selfID     int64

	wg sync.WaitGroup
}

// New creates an Engine. selfID is the bot's own user ID; its messages are
// never matched.
func New(
	idx *index.Index,
	filter *eligibility.Filter,
	tracker *cooldown.Tracker,
	dispatcher *dispatch.Dispatcher,
	m *metrics.Metrics,
	selfID int64,
	log *slog.Logger,
) *Engine {
	return &Engine{
		idx:        idx,
		filter:     filter,
		tracker:    tracker,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
		selfID:     selfID,
	}
}

// HandleMessage spawns an independent task for one inbound message and
// returns immediately.
func (e *Engine) HandleMessage(ctx context.Context, msg model.Message) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.process(ctx, msg)
	}()
}

// Wait blocks until all in-flight message tasks have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) process(ctx context.Context, msg model.Message) {
	e.metrics.MessagesProcessed.Inc()

	if msg.AuthorID == e.selfID || strings.TrimSpace(msg.Content) == "" {
		return
	}

	snap := e.idx.Snapshot(msg.GuildID)

	start := time.Now()
	owners := matcher.Match(msg.Content, snap.Keywords())
	e.metrics.MatchDuration.Observe(time.Since(start).Seconds())

	if len(owners) == 0 {
		return
	}

	total := 0
	for _, om := range owners {
		total += len(om.Matches)
	}
	e.metrics.MatchesFound.Add(float64(total))

	for _, om := range owners {
		e.notifyOwner(ctx, om, snap, msg)
	}
}

// notifyOwner runs the per-owner checks and sends at most one notification
// for the message, listing every keyword that passed its cooldown.
func (e *Engine) notifyOwner(ctx context.Context, om matcher.OwnerMatches, snap *index.Snapshot, msg model.Message) {
	eligible, reason := e.filter.Check(ctx, om.OwnerID, snap, msg)
	if !eligible {
		e.metrics.Notifications.WithLabelValues(metrics.ResultSuppressed).Inc()
		e.log.Debug("match suppressed",
			"owner_id", om.OwnerID, "message_id", msg.ID, "reason", string(reason))
		return
	}

	now := time.Now()
	if e.tracker.IsUnreachable(om.OwnerID, now) {
		e.metrics.Notifications.WithLabelValues(metrics.ResultSuppressed).Inc()
		return
	}

	var keywords []string
	for _, km := range om.Matches {
		if e.tracker.ShouldNotify(om.OwnerID, km.Keyword.ID, now) {
			keywords = append(keywords, km.Keyword.Pattern)
		}
	}
	if len(keywords) == 0 {
		e.metrics.Notifications.WithLabelValues(metrics.ResultSuppressed).Inc()
		return
	}

	outcome := e.dispatcher.Notify(ctx, om.OwnerID, msg, keywords)
	if outcome == dispatch.OutcomeDelivered {
		e.metrics.Notifications.WithLabelValues(metrics.ResultSent).Inc()
		e.log.Info("notification sent",
			"owner_id", om.OwnerID, "message_id", msg.ID, "keywords", len(keywords))
	} else {
		e.metrics.Notifications.WithLabelValues(metrics.ResultFailed).Inc()
	}
}
