// Package index maintains the in-memory keyword index used for matching.
//
// The index is a projection of persisted subscriptions: mutations are
// written to storage first, then applied here. Readers obtain an immutable
// snapshot per guild and never block writers; writers publish fully-formed
// replacement slices instead of mutating shared state in place.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"highlight_bot/internal/matcher"
	"highlight_bot/internal/model"
	"highlight_bot/internal/storage"
)

// Index maps guilds to their active keyword subscriptions, ignore rules,
// and opt-outs, plus a global bucket for cross-guild keywords and blocks.
type Index struct {
	store storage.Storage
	log   *slog.Logger

	mu     sync.RWMutex
	guilds map[int64]*guildEntry
	global []*matcher.Compiled
	blocks map[int64]map[int64]struct{}
}

type guildEntry struct {
	keywords []*matcher.Compiled
	ignores  []model.IgnoreRule
	optOuts  map[int64]struct{}
}

// New creates an empty index over the given storage.
func New(store storage.Storage, log *slog.Logger) *Index {
	return &Index{
		store:  store,
		log:    log,
		guilds: make(map[int64]*guildEntry),
		blocks: make(map[int64]map[int64]struct{}),
	}
}

// Load reconstructs the full index from storage. It fails only when storage
// is unreachable; rows whose pattern cannot be compiled are skipped with a
// warning.
func (ix *Index) Load(ctx context.Context) error {
	keywords, err := ix.store.ListAllKeywords(ctx)
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}
	ignores, err := ix.store.ListAllIgnoreRules(ctx)
	if err != nil {
		return fmt.Errorf("list ignore rules: %w", err)
	}
	optOuts, err := ix.store.ListAllOptOuts(ctx)
	if err != nil {
		return fmt.Errorf("list opt-outs: %w", err)
	}
	blocks, err := ix.store.ListAllBlocks(ctx)
	if err != nil {
		return fmt.Errorf("list blocks: %w", err)
	}

	guilds := make(map[int64]*guildEntry)
	var global []*matcher.Compiled
	loaded := 0

	for _, kw := range keywords {
		ck, err := matcher.Compile(kw)
		if err != nil {
			ix.log.Warn("skipping stored keyword", "keyword_id", kw.ID, "error", err)
			continue
		}
		if kw.Global() {
			global = append(global, ck)
		} else {
			entry := ensureGuild(guilds, kw.GuildID)
			entry.keywords = append(entry.keywords, ck)
		}
		loaded++
	}
	for _, rule := range ignores {
		entry := ensureGuild(guilds, rule.GuildID)
		entry.ignores = append(entry.ignores, rule)
	}
	for _, o := range optOuts {
		entry := ensureGuild(guilds, o.GuildID)
		entry.optOuts[o.UserID] = struct{}{}
	}

	blockMap := make(map[int64]map[int64]struct{})
	for _, b := range blocks {
		if blockMap[b.UserID] == nil {
			blockMap[b.UserID] = make(map[int64]struct{})
		}
		blockMap[b.UserID][b.BlockedID] = struct{}{}
	}

	ix.mu.Lock()
	ix.guilds = guilds
	ix.global = global
	ix.blocks = blockMap
	ix.mu.Unlock()

	ix.log.Info("keyword index loaded",
		"keywords", loaded,
		"guilds", len(guilds),
		"ignore_rules", len(ignores),
		"opt_outs", len(optOuts),
		"blocks", len(blocks),
	)
	return nil
}

// Insert adds an already-persisted keyword to the index.
func (ix *Index) Insert(kw model.Keyword) error {
	ck, err := matcher.Compile(kw)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if kw.Global() {
		ix.global = append(slices.Clip(ix.global), ck)
		return nil
	}
	entry := ix.guildEntryLocked(kw.GuildID)
	entry.keywords = append(slices.Clip(entry.keywords), ck)
	return nil
}

// Remove drops a keyword from the index by its ID and scope.
func (ix *Index) Remove(keywordID, guildID int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if guildID == 0 {
		ix.global = removeKeyword(ix.global, keywordID)
		return
	}
	if entry, ok := ix.guilds[guildID]; ok {
		entry.keywords = removeKeyword(entry.keywords, keywordID)
	}
}

// SetIgnores replaces the ignore rules for one guild.
func (ix *Index) SetIgnores(guildID int64, rules []model.IgnoreRule) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	entry := ix.guildEntryLocked(guildID)
	entry.ignores = slices.Clone(rules)
}

// SetOptOut records or clears a user's opt-out in one guild.
func (ix *Index) SetOptOut(userID, guildID int64, optedOut bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	entry := ix.guildEntryLocked(guildID)
	optOuts := make(map[int64]struct{}, len(entry.optOuts)+1)
	for id := range entry.optOuts {
		optOuts[id] = struct{}{}
	}
	if optedOut {
		optOuts[userID] = struct{}{}
	} else {
		delete(optOuts, userID)
	}
	entry.optOuts = optOuts
}

// SetBlock records or clears that userID blocked blockedID.
func (ix *Index) SetBlock(userID, blockedID int64, blocked bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	blockMap := make(map[int64]map[int64]struct{}, len(ix.blocks))
	for blocker, targets := range ix.blocks {
		blockMap[blocker] = targets
	}
	targets := make(map[int64]struct{}, len(blockMap[userID])+1)
	for id := range blockMap[userID] {
		targets[id] = struct{}{}
	}
	if blocked {
		targets[blockedID] = struct{}{}
	} else {
		delete(targets, blockedID)
	}
	if len(targets) == 0 {
		delete(blockMap, userID)
	} else {
		blockMap[userID] = targets
	}
	ix.blocks = blockMap
}

// Snapshot returns an immutable view of one guild's subscriptions for a
// single matching pass. A guild with no state yields an empty snapshot,
// never an error.
func (ix *Index) Snapshot(guildID int64) *Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	snap := &Snapshot{
		GuildID: guildID,
		blocks:  ix.blocks,
	}
	entry := ix.guilds[guildID]

	var guildKeywords []*matcher.Compiled
	if entry != nil {
		guildKeywords = entry.keywords
		snap.ignores = entry.ignores
		snap.optOuts = entry.optOuts
	}
	snap.keywords = make([]*matcher.Compiled, 0, len(guildKeywords)+len(ix.global))
	snap.keywords = append(snap.keywords, guildKeywords...)
	snap.keywords = append(snap.keywords, ix.global...)
	return snap
}

func (ix *Index) guildEntryLocked(guildID int64) *guildEntry {
	return ensureGuild(ix.guilds, guildID)
}

func ensureGuild(guilds map[int64]*guildEntry, guildID int64) *guildEntry {
	entry, ok := guilds[guildID]
	if !ok {
		entry = &guildEntry{optOuts: make(map[int64]struct{})}
		guilds[guildID] = entry
	}
	return entry
}

func removeKeyword(keywords []*matcher.Compiled, keywordID int64) []*matcher.Compiled {
	out := make([]*matcher.Compiled, 0, len(keywords))
	for _, ck := range keywords {
		if ck.Keyword.ID != keywordID {
			out = append(out, ck)
		}
	}
	return out
}
