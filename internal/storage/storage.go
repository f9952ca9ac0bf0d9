// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"highlight_bot/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateKeyword(ctx context.Context, kw *model.Keyword) error
	DeleteKeyword(ctx context.Context, id int64) error
	FindKeyword(ctx context.Context, userID, guildID int64, pattern string) (*model.Keyword, error)
	ListKeywords(ctx context.Context, userID int64) ([]model.Keyword, error)
	CountKeywords(ctx context.Context, userID int64) (int, error)
	ListAllKeywords(ctx context.Context) ([]model.Keyword, error)

	CreateIgnoreRule(ctx context.Context, rule *model.IgnoreRule) error
	DeleteIgnoreRule(ctx context.Context, id int64) error
	GetIgnoreRule(ctx context.Context, id int64) (*model.IgnoreRule, error)
	ListIgnoreRules(ctx context.Context, guildID int64) ([]model.IgnoreRule, error)
	ListAllIgnoreRules(ctx context.Context) ([]model.IgnoreRule, error)

	CreateBlock(ctx context.Context, userID, blockedID int64) error
	DeleteBlock(ctx context.Context, userID, blockedID int64) error
	ListBlocks(ctx context.Context, userID int64) ([]model.Block, error)
	ListAllBlocks(ctx context.Context) ([]model.Block, error)

	SetOptOut(ctx context.Context, userID, guildID int64) error
	ClearOptOut(ctx context.Context, userID, guildID int64) error
	ListAllOptOuts(ctx context.Context) ([]model.OptOut, error)

	Close() error
}
