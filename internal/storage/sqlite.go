package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"highlight_bot/internal/model"
	"highlight_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateKeyword inserts a new keyword and populates its ID and CreatedAt.
func (s *SQLite) CreateKeyword(ctx context.Context, kw *model.Keyword) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO keywords (user_id, guild_id, pattern, case_sensitive, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		kw.UserID, kw.GuildID, kw.Pattern, boolToInt(kw.CaseSensitive), now,
	)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	kw.ID = id
	kw.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// DeleteKeyword removes a keyword by its ID.
func (s *SQLite) DeleteKeyword(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	return nil
}

// FindKeyword looks up a keyword by owner, scope, and normalized pattern.
func (s *SQLite) FindKeyword(ctx context.Context, userID, guildID int64, pattern string) (*model.Keyword, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, guild_id, pattern, case_sensitive, created_at
		 FROM keywords WHERE user_id = ? AND guild_id = ? AND lower(pattern) = lower(?)`,
		userID, guildID, pattern,
	)
	return scanKeyword(row)
}

// ListKeywords returns all keywords belonging to the given user.
func (s *SQLite) ListKeywords(ctx context.Context, userID int64) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, guild_id, pattern, case_sensitive, created_at
		 FROM keywords WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanKeywords(rows)
}

// CountKeywords returns the number of keywords the given user owns.
func (s *SQLite) CountKeywords(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM keywords WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count keywords: %w", err)
	}
	return count, nil
}

// ListAllKeywords returns every stored keyword.
func (s *SQLite) ListAllKeywords(ctx context.Context) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, guild_id, pattern, case_sensitive, created_at
		 FROM keywords ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanKeywords(rows)
}

// CreateIgnoreRule inserts a new ignore rule and populates its ID and CreatedAt.
func (s *SQLite) CreateIgnoreRule(ctx context.Context, rule *model.IgnoreRule) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ignore_rules (guild_id, user_id, kind, target_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rule.GuildID, rule.UserID, string(rule.Kind), rule.TargetID, now,
	)
	if err != nil {
		return fmt.Errorf("insert ignore rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rule.ID = id
	rule.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// DeleteIgnoreRule removes an ignore rule by its ID.
func (s *SQLite) DeleteIgnoreRule(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ignore_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ignore rule: %w", err)
	}
	return nil
}

// GetIgnoreRule returns a single ignore rule by its ID.
func (s *SQLite) GetIgnoreRule(ctx context.Context, id int64) (*model.IgnoreRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, user_id, kind, target_id, created_at
		 FROM ignore_rules WHERE id = ?`, id,
	)
	return scanIgnoreRule(row)
}

// ListIgnoreRules returns all ignore rules for the given guild.
func (s *SQLite) ListIgnoreRules(ctx context.Context, guildID int64) ([]model.IgnoreRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, user_id, kind, target_id, created_at
		 FROM ignore_rules WHERE guild_id = ? ORDER BY id`, guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ignore rules: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanIgnoreRules(rows)
}

// ListAllIgnoreRules returns every stored ignore rule.
func (s *SQLite) ListAllIgnoreRules(ctx context.Context) ([]model.IgnoreRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, user_id, kind, target_id, created_at
		 FROM ignore_rules ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all ignore rules: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanIgnoreRules(rows)
}

// CreateBlock records that userID blocked blockedID. Inserting an existing
// pair is a no-op.
func (s *SQLite) CreateBlock(ctx context.Context, userID, blockedID int64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blocks (user_id, blocked_id, created_at) VALUES (?, ?, ?)`,
		userID, blockedID, now,
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// DeleteBlock removes a block pair.
func (s *SQLite) DeleteBlock(ctx context.Context, userID, blockedID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM blocks WHERE user_id = ? AND blocked_id = ?`, userID, blockedID,
	)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}

// ListBlocks returns all blocks created by the given user.
func (s *SQLite) ListBlocks(ctx context.Context, userID int64) ([]model.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, blocked_id, created_at FROM blocks WHERE user_id = ? ORDER BY blocked_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanBlocks(rows)
}

// ListAllBlocks returns every stored block pair.
func (s *SQLite) ListAllBlocks(ctx context.Context) ([]model.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, blocked_id, created_at FROM blocks ORDER BY user_id, blocked_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all blocks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanBlocks(rows)
}

// SetOptOut disables highlighting for a user in a guild. Repeating an
// existing opt-out is a no-op.
func (s *SQLite) SetOptOut(ctx context.Context, userID, guildID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO opt_outs (user_id, guild_id) VALUES (?, ?)`,
		userID, guildID,
	)
	if err != nil {
		return fmt.Errorf("insert opt-out: %w", err)
	}
	return nil
}

// ClearOptOut re-enables highlighting for a user in a guild.
func (s *SQLite) ClearOptOut(ctx context.Context, userID, guildID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM opt_outs WHERE user_id = ? AND guild_id = ?`, userID, guildID,
	)
	if err != nil {
		return fmt.Errorf("delete opt-out: %w", err)
	}
	return nil
}

// ListAllOptOuts returns every stored opt-out.
func (s *SQLite) ListAllOptOuts(ctx context.Context) ([]model.OptOut, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, guild_id FROM opt_outs ORDER BY user_id, guild_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all opt-outs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var optOuts []model.OptOut
	for rows.Next() {
		var o model.OptOut
		if err := rows.Scan(&o.UserID, &o.GuildID); err != nil {
			return nil, fmt.Errorf("scan opt-out: %w", err)
		}
		optOuts = append(optOuts, o)
	}
	return optOuts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanKeyword(row scannable) (*model.Keyword, error) {
	var kw model.Keyword
	var caseSensitive int
	var created sql.NullString
	err := row.Scan(&kw.ID, &kw.UserID, &kw.GuildID, &kw.Pattern, &caseSensitive, &created)
	if err != nil {
		return nil, fmt.Errorf("scan keyword: %w", err)
	}
	kw.CaseSensitive = caseSensitive == 1
	if created.Valid {
		kw.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &kw, nil
}

func scanKeywords(rows *sql.Rows) ([]model.Keyword, error) {
	var keywords []model.Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, *kw)
	}
	return keywords, rows.Err()
}

func scanIgnoreRule(row scannable) (*model.IgnoreRule, error) {
	var r model.IgnoreRule
	var kindStr, createdStr string
	err := row.Scan(&r.ID, &r.GuildID, &r.UserID, &kindStr, &r.TargetID, &createdStr)
	if err != nil {
		return nil, fmt.Errorf("scan ignore rule: %w", err)
	}
	r.Kind = model.IgnoreKind(kindStr)
	r.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return &r, nil
}

func scanIgnoreRules(rows *sql.Rows) ([]model.IgnoreRule, error) {
	var rules []model.IgnoreRule
	for rows.Next() {
		r, err := scanIgnoreRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func scanBlocks(rows *sql.Rows) ([]model.Block, error) {
	var blocks []model.Block
	for rows.Next() {
		var b model.Block
		var createdStr string
		if err := rows.Scan(&b.UserID, &b.BlockedID, &createdStr); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		b.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
