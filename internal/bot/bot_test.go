package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"highlight_bot/internal/index"
	"highlight_bot/internal/matcher"
	"highlight_bot/internal/model"
	"highlight_bot/internal/storage"
)

type mockTransport struct {
	replies []string
}

func (m *mockTransport) SendChannelMessage(_ context.Context, _ int64, content string) error {
	m.replies = append(m.replies, content)
	return nil
}

func (m *mockTransport) lastReply(t *testing.T) string {
	t.Helper()
	if len(m.replies) == 0 {
		t.Fatal("expected a reply")
	}
	return m.replies[len(m.replies)-1]
}

type mockEngine struct {
	forwarded []model.Message
}

func (m *mockEngine) HandleMessage(_ context.Context, msg model.Message) {
	m.forwarded = append(m.forwarded, msg)
}

type fixture struct {
	store     *storage.SQLite
	idx       *index.Index
	transport *mockTransport
	engine    *mockEngine
	bot       *Bot
}

func newFixture(t *testing.T) *fixture {
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

	transport := &mockTransport{}
	engine := &mockEngine{}
	return &fixture{
		store:     store,
		idx:       idx,
		transport: transport,
		engine:    engine,
		bot:       New(store, idx, transport, engine, "!hl", 3, log),
	}
}

func (f *fixture) send(content string) {
	msg := model.Message{
		ID:        1,
		GuildID:   100,
		ChannelID: 555,
		AuthorID:  7,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	f.bot.HandleMessage(context.Background(), msg)
}

func TestNonCommandMessagesGoToEngine(t *testing.T) {
	f := newFixture(t)

	f.send("just chatting about rust")
	f.send("!hlx not actually a command")

	if len(f.engine.forwarded) != 2 {
		t.Errorf("expected 2 forwarded messages, got %d", len(f.engine.forwarded))
	}
	if len(f.transport.replies) != 0 {
		t.Errorf("expected no replies, got %v", f.transport.replies)
	}
}

func TestAddListRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send("!hl add rust")
	if got := f.transport.lastReply(t); !strings.Contains(got, `"rust"`) {
		t.Errorf("add reply should confirm the keyword: %q", got)
	}

	// The keyword is live in the index immediately.
	snap := f.idx.Snapshot(100)
	if owners := matcher.Match("shipping Rust today", snap.Keywords()); len(owners) != 1 {
		t.Errorf("expected the new keyword to match, got %v", owners)
	}

	f.send("!hl add -g -c Go")
	kws, err := f.store.ListKeywords(ctx, 7)
	if err != nil {
		t.Fatalf("list keywords: %v", err)
	}
	if len(kws) != 2 || !kws[1].Global() || !kws[1].CaseSensitive {
		t.Errorf("expected a global case-sensitive keyword, got %+v", kws)
	}

	f.send("!hl list")
	got := f.transport.lastReply(t)
	if !strings.Contains(got, "Global:") || !strings.Contains(got, "Per-server:") {
		t.Errorf("list should group by scope:\n%s", got)
	}

	f.send("!hl remove rust")
	snap = f.idx.Snapshot(100)
	if owners := matcher.Match("shipping Rust today", snap.Keywords()); len(owners) != 0 {
		t.Errorf("expected no match after remove, got %v", owners)
	}

	f.send("!hl remove rust")
	if got := f.transport.lastReply(t); !strings.Contains(got, "don't highlight") {
		t.Errorf("removing a missing keyword should say so: %q", got)
	}
}

func TestRemoveReportsStorageError(t *testing.T) {
	f := newFixture(t)

	// A failing store must not be mistaken for a missing keyword.
	_ = f.store.Close()
	f.send("!hl remove rust")

	got := f.transport.lastReply(t)
	if !strings.Contains(got, "Error:") {
		t.Errorf("expected a storage error reply, got %q", got)
	}
	if strings.Contains(got, "don't highlight") {
		t.Errorf("storage failure reported as a missing keyword: %q", got)
	}
}

func TestAddDuplicateRejected(t *testing.T) {
	f := newFixture(t)

	f.send("!hl add rust")
	f.send("!hl add RUST")
	if got := f.transport.lastReply(t); !strings.Contains(got, "already highlight") {
		t.Errorf("expected duplicate rejection, got %q", got)
	}

	kws, err := f.store.ListKeywords(context.Background(), 7)
	if err != nil {
		t.Fatalf("list keywords: %v", err)
	}
	if len(kws) != 1 {
		t.Errorf("expected 1 keyword, got %d", len(kws))
	}
}

func TestAddEnforcesKeywordCap(t *testing.T) {
	f := newFixture(t) // cap is 3

	for i := 0; i < 3; i++ {
		f.send(fmt.Sprintf("!hl add keyword%d", i))
	}
	f.send("!hl add onemore")
	if got := f.transport.lastReply(t); !strings.Contains(got, "maximum") {
		t.Errorf("expected cap rejection, got %q", got)
	}

	count, err := f.store.CountKeywords(context.Background(), 7)
	if err != nil {
		t.Fatalf("count keywords: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestIgnoreLifecycle(t *testing.T) {
	f := newFixture(t)

	f.send("!hl ignore channel 555")
	snap := f.idx.Snapshot(100)
	if !snap.Ignored(7, model.Message{GuildID: 100, ChannelID: 555}) {
		t.Fatal("ignore rule should be live in the index")
	}

	rules, err := f.store.ListIgnoreRules(context.Background(), 100)
	if err != nil {
		t.Fatalf("list ignore rules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	f.send(fmt.Sprintf("!hl unignore %d", rules[0].ID))
	snap = f.idx.Snapshot(100)
	if snap.Ignored(7, model.Message{GuildID: 100, ChannelID: 555}) {
		t.Error("ignore rule should be gone after unignore")
	}
}

func TestUnignoreRefusesOtherUsersRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rule := &model.IgnoreRule{GuildID: 100, UserID: 9, Kind: model.IgnoreChannel, TargetID: 555}
	if err := f.store.CreateIgnoreRule(ctx, rule); err != nil {
		t.Fatalf("create ignore rule: %v", err)
	}

	f.send(fmt.Sprintf("!hl unignore %d", rule.ID))
	if got := f.transport.lastReply(t); !strings.Contains(got, "not found") {
		t.Errorf("expected not-found reply, got %q", got)
	}
	if _, err := f.store.GetIgnoreRule(ctx, rule.ID); err != nil {
		t.Error("the other user's rule must survive")
	}
}

func TestBlockLifecycle(t *testing.T) {
	f := newFixture(t)

	f.send("!hl block 42")
	if !f.idx.Snapshot(100).BlockedEither(7, 42) {
		t.Fatal("block should be live in the index")
	}

	f.send("!hl block 7")
	if got := f.transport.lastReply(t); !strings.Contains(got, "yourself") {
		t.Errorf("expected self-block rejection, got %q", got)
	}

	f.send("!hl unblock 42")
	if f.idx.Snapshot(100).BlockedEither(7, 42) {
		t.Error("block should be gone after unblock")
	}
}

func TestOptOutAndOptIn(t *testing.T) {
	f := newFixture(t)

	f.send("!hl optout")
	if !f.idx.Snapshot(100).OptedOut(7) {
		t.Fatal("opt-out should be live in the index")
	}

	f.send("!hl optin")
	if f.idx.Snapshot(100).OptedOut(7) {
		t.Error("opt-out should be cleared after optin")
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.send("!hl frobnicate")
	if got := f.transport.lastReply(t); !strings.Contains(got, "Unknown command") {
		t.Errorf("expected unknown-command reply, got %q", got)
	}
}

func TestParseKeywordArgs(t *testing.T) {
	tests := []struct {
		args    string
		want    KeywordArgs
		wantErr bool
	}{
		{args: "rust", want: KeywordArgs{Pattern: "rust"}},
		{args: "-g rust", want: KeywordArgs{Global: true, Pattern: "rust"}},
		{args: "-g -c Rust", want: KeywordArgs{Global: true, CaseSensitive: true, Pattern: "Rust"}},
		{args: "release  candidate", want: KeywordArgs{Pattern: "release candidate"}},
		{args: "-x rust", wantErr: true},
		{args: "-g", wantErr: true},
		{args: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseKeywordArgs(tt.args)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseKeywordArgs(%q): expected error", tt.args)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKeywordArgs(%q): %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKeywordArgs(%q) = %+v, want %+v", tt.args, got, tt.want)
		}
	}
}

func TestParseIgnoreArgs(t *testing.T) {
	kind, target, err := ParseIgnoreArgs("channel 555")
	if err != nil || kind != model.IgnoreChannel || target != 555 {
		t.Errorf("ParseIgnoreArgs(channel 555) = (%v, %d, %v)", kind, target, err)
	}

	for _, bad := range []string{"", "channel", "channel abc", "thread 555"} {
		if _, _, err := ParseIgnoreArgs(bad); err == nil {
			t.Errorf("ParseIgnoreArgs(%q): expected error", bad)
		}
	}
}
