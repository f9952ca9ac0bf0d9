package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"highlight_bot/internal/cooldown"
	"highlight_bot/internal/model"
)

type mockTransport struct {
	mu         sync.Mutex
	sendErrs   []error // consumed per attempt; nil entry means success
	sent       []string
	contextErr error
	context    []model.Message
}

func (m *mockTransport) SendDirectMessage(_ context.Context, _ int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if len(m.sendErrs) > 0 {
		err, m.sendErrs = m.sendErrs[0], m.sendErrs[1:]
	}
	if err == nil {
		m.sent = append(m.sent, content)
	}
	return err
}

func (m *mockTransport) FetchContext(_ context.Context, _, _ int64, _, _ int) ([]model.Message, error) {
	if m.contextErr != nil {
		return nil, m.contextErr
	}
	return m.context, nil
}

func (m *mockTransport) sentMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(transport Transport, tracker *cooldown.Tracker) *Dispatcher {
	d := New(transport, tracker, 2, 2, discardLogger())
	d.SetBackoff(3, time.Millisecond)
	return d
}

var testMsg = model.Message{
	ID:        10,
	GuildID:   100,
	ChannelID: 555,
	AuthorID:  42,
	Content:   "I love Rust!",
	Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
}

func TestNotifyDelivers(t *testing.T) {
	transport := &mockTransport{
		context: []model.Message{
			{ID: 9, AuthorID: 41, Content: "anyone tried it?", Timestamp: testMsg.Timestamp.Add(-time.Minute)},
			testMsg,
		},
	}
	tracker := cooldown.NewTracker(time.Minute)
	d := newTestDispatcher(transport, tracker)

	outcome := d.Notify(context.Background(), 7, testMsg, []string{"rust"})
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered", outcome)
	}

	sent := transport.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 DM, got %d", len(sent))
	}
	if !strings.Contains(sent[0], `"rust"`) {
		t.Errorf("notification should name the keyword:\n%s", sent[0])
	}
	if !strings.Contains(sent[0], "I love Rust!") {
		t.Errorf("notification should include the triggering message:\n%s", sent[0])
	}
	if !strings.Contains(sent[0], "anyone tried it?") {
		t.Errorf("notification should include surrounding context:\n%s", sent[0])
	}
}

func TestNotifyRetriesTransientFailure(t *testing.T) {
	transport := &mockTransport{
		sendErrs: []error{
			fmt.Errorf("status 429: %w", ErrRateLimited),
			errors.New("connection reset"),
			nil,
		},
	}
	tracker := cooldown.NewTracker(time.Minute)
	d := newTestDispatcher(transport, tracker)

	outcome := d.Notify(context.Background(), 7, testMsg, []string{"rust"})
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered after retries", outcome)
	}
	if len(transport.sentMessages()) != 1 {
		t.Errorf("expected exactly one successful send")
	}
}

func TestNotifyExhaustsRetries(t *testing.T) {
	transport := &mockTransport{
		sendErrs: []error{
			errors.New("timeout"), errors.New("timeout"),
			errors.New("timeout"), errors.New("timeout"),
		},
	}
	tracker := cooldown.NewTracker(time.Minute)
	d := newTestDispatcher(transport, tracker)

	outcome := d.Notify(context.Background(), 7, testMsg, []string{"rust"})
	if outcome != OutcomeFailedExhausted {
		t.Fatalf("outcome = %v, want failed_exhausted", outcome)
	}
	if tracker.IsUnreachable(7, time.Now()) {
		t.Error("transient exhaustion must not mark the user unreachable")
	}
}

func TestNotifyPermanentFailureShortCircuits(t *testing.T) {
	transport := &mockTransport{
		sendErrs: []error{fmt.Errorf("status 403: %w", ErrUnreachable)},
	}
	tracker := cooldown.NewTracker(time.Minute)
	d := newTestDispatcher(transport, tracker)

	outcome := d.Notify(context.Background(), 7, testMsg, []string{"rust"})
	if outcome != OutcomeFailedPermanent {
		t.Fatalf("outcome = %v, want failed_permanent", outcome)
	}
	if !tracker.IsUnreachable(7, time.Now()) {
		t.Error("permanent failure should mark the user unreachable")
	}
	if len(transport.sentMessages()) != 0 {
		t.Error("permanent failure must not be retried")
	}
}

func TestNotifyDeliversWithoutContextOnFetchFailure(t *testing.T) {
	transport := &mockTransport{contextErr: errors.New("context unavailable")}
	tracker := cooldown.NewTracker(time.Minute)
	d := newTestDispatcher(transport, tracker)

	outcome := d.Notify(context.Background(), 7, testMsg, []string{"rust"})
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered despite context failure", outcome)
	}
	sent := transport.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0], "I love Rust!") {
		t.Errorf("notification should still carry the triggering message:\n%v", sent)
	}
}

func TestFormatNotificationTruncatesAtRuneBoundary(t *testing.T) {
	msg := testMsg
	// Byte 300 falls inside the two-byte "é"; the cut must back off to
	// the rune boundary instead of splitting it.
	msg.Content = strings.Repeat("a", 299) + "é" + strings.Repeat("b", 50)

	got := FormatNotification(msg, nil, []string{"rust"})
	if !utf8.ValidString(got) {
		t.Fatalf("notification contains invalid UTF-8:\n%s", got)
	}
	if !strings.Contains(got, strings.Repeat("a", 299)+"...") {
		t.Errorf("preview should end at the rune boundary before the limit:\n%s", got)
	}
}

func TestFormatNotificationMultipleKeywords(t *testing.T) {
	got := FormatNotification(testMsg, nil, []string{"rust", "cargo"})
	if !strings.Contains(got, `"rust"`) || !strings.Contains(got, `"cargo"`) {
		t.Errorf("expected both keywords listed:\n%s", got)
	}
	if !strings.Contains(got, "> ") {
		t.Errorf("triggering message should be marked:\n%s", got)
	}
}
