package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"highlight_bot/internal/cooldown"
	"highlight_bot/internal/dispatch"
	"highlight_bot/internal/eligibility"
	"highlight_bot/internal/index"
	"highlight_bot/internal/metrics"
	"highlight_bot/internal/model"
	"highlight_bot/internal/storage"
)

const botUserID = 999

type dm struct {
	UserID  int64
	Content string
}

type mockTransport struct {
	mu        sync.Mutex
	dms       []dm
	invisible map[int64]bool // channels hidden from everyone
}

func (m *mockTransport) SendDirectMessage(_ context.Context, userID int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dms = append(m.dms, dm{UserID: userID, Content: content})
	return nil
}

func (m *mockTransport) FetchContext(_ context.Context, _, _ int64, _, _ int) ([]model.Message, error) {
	return nil, nil
}

func (m *mockTransport) CanUserViewChannel(_ context.Context, _, channelID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.invisible[channelID], nil
}

func (m *mockTransport) sentDMs() []dm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dm(nil), m.dms...)
}

type fixture struct {
	store     *storage.SQLite
	idx       *index.Index
	tracker   *cooldown.Tracker
	transport *mockTransport
	engine    *Engine
}

func newFixture(t *testing.T, window time.Duration) *fixture {
	t.Helper()

	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := index.New(store, log)
	if err := idx.Load(context.Background()); err != nil {
		t.Fatalf("load index: %v", err)
	}

	transport := &mockTransport{invisible: make(map[int64]bool)}
	tracker := cooldown.NewTracker(window)
	filter := eligibility.New(transport, log)
	dispatcher := dispatch.New(transport, tracker, 2, 2, log)
	dispatcher.SetBackoff(1, time.Millisecond)
	eng := New(idx, filter, tracker, dispatcher, metrics.New(), botUserID, log)

	return &fixture{
		store:     store,
		idx:       idx,
		tracker:   tracker,
		transport: transport,
		engine:    eng,
	}
}

func (f *fixture) addKeyword(t *testing.T, userID, guildID int64, pattern string) model.Keyword {
	t.Helper()
	kw := &model.Keyword{UserID: userID, GuildID: guildID, Pattern: pattern}
	if err := f.store.CreateKeyword(context.Background(), kw); err != nil {
		t.Fatalf("create keyword: %v", err)
	}
	if err := f.idx.Insert(*kw); err != nil {
		t.Fatalf("insert keyword: %v", err)
	}
	return *kw
}

func (f *fixture) deliver(msg model.Message) {
	f.engine.HandleMessage(context.Background(), msg)
	f.engine.Wait()
}

func newMessage(id, authorID int64, content string) model.Message {
	return model.Message{
		ID:        id,
		GuildID:   100,
		ChannelID: 555,
		AuthorID:  authorID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func TestEndToEndCooldownScenario(t *testing.T) {
	f := newFixture(t, 75*time.Millisecond)
	f.addKeyword(t, 7, 100, "rust")

	f.deliver(newMessage(1, 42, "I love Rust!"))
	dms := f.transport.sentDMs()
	if len(dms) != 1 || dms[0].UserID != 7 {
		t.Fatalf("expected one DM to user 7, got %+v", dms)
	}
	if !strings.Contains(dms[0].Content, "I love Rust!") {
		t.Errorf("notification should contain the triggering message:\n%s", dms[0].Content)
	}

	// Inside the cooldown window: no additional notification.
	f.deliver(newMessage(2, 42, "I love Rust!"))
	if got := len(f.transport.sentDMs()); got != 1 {
		t.Fatalf("expected cooldown to suppress the repeat, got %d DMs", got)
	}

	// After the window elapses: one more.
	time.Sleep(100 * time.Millisecond)
	f.deliver(newMessage(3, 42, "I love Rust!"))
	if got := len(f.transport.sentDMs()); got != 2 {
		t.Errorf("expected a notification after the window elapsed, got %d DMs", got)
	}
}

func TestIgnoredChannelYieldsNoNotification(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addKeyword(t, 7, 100, "rust")

	ctx := context.Background()
	rule := &model.IgnoreRule{GuildID: 100, UserID: 7, Kind: model.IgnoreChannel, TargetID: 555}
	if err := f.store.CreateIgnoreRule(ctx, rule); err != nil {
		t.Fatalf("create ignore rule: %v", err)
	}
	f.idx.SetIgnores(100, []model.IgnoreRule{*rule})

	f.deliver(newMessage(1, 42, "I love Rust!"))
	if got := len(f.transport.sentDMs()); got != 0 {
		t.Errorf("expected no notifications for an ignored channel, got %d", got)
	}
}

func TestNoSelfNotification(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addKeyword(t, 7, 100, "rust")

	f.deliver(newMessage(1, 7, "talking about rust myself"))
	if got := len(f.transport.sentDMs()); got != 0 {
		t.Errorf("expected no self-notification, got %d", got)
	}
}

func TestBlockedAuthorSuppressesBlockersNotification(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addKeyword(t, 7, 100, "rust")
	f.addKeyword(t, 9, 100, "rust")
	f.idx.SetBlock(7, 42, true)

	f.deliver(newMessage(1, 42, "rust update"))
	dms := f.transport.sentDMs()
	if len(dms) != 1 || dms[0].UserID != 9 {
		t.Errorf("expected only the non-blocking user to be notified, got %+v", dms)
	}
}

func TestMultipleKeywordsCollapseToOneNotification(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addKeyword(t, 7, 100, "rust")
	f.addKeyword(t, 7, 100, "cargo")

	f.deliver(newMessage(1, 42, "rust and cargo both released"))
	dms := f.transport.sentDMs()
	if len(dms) != 1 {
		t.Fatalf("expected exactly one collapsed notification, got %d", len(dms))
	}
	if !strings.Contains(dms[0].Content, `"rust"`) || !strings.Contains(dms[0].Content, `"cargo"`) {
		t.Errorf("notification should list both keywords:\n%s", dms[0].Content)
	}
}

func TestHiddenChannelYieldsNoNotification(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addKeyword(t, 7, 100, "rust")
	f.transport.invisible[555] = true

	f.deliver(newMessage(1, 42, "rust in a private channel"))
	if got := len(f.transport.sentDMs()); got != 0 {
		t.Errorf("expected no notification for an invisible channel, got %d", got)
	}
}

func TestBotOwnMessagesAreSkipped(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addKeyword(t, 7, 100, "rust")

	f.deliver(newMessage(1, botUserID, "rust mentioned by the bot"))
	if got := len(f.transport.sentDMs()); got != 0 {
		t.Errorf("expected bot messages to be skipped, got %d DMs", got)
	}
}

func TestConcurrentBurstNotifiesOnce(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addKeyword(t, 7, 100, "rust")

	ctx := context.Background()
	for i := int64(1); i <= 20; i++ {
		f.engine.HandleMessage(ctx, newMessage(i, 42, "rust rust rust"))
	}
	f.engine.Wait()

	if got := len(f.transport.sentDMs()); got != 1 {
		t.Errorf("expected exactly one notification across the burst, got %d", got)
	}
}
