package backend

import (
	"context"

	"bilancio/internal/core"
)

// EntryStore persists one-time entries scoped by owner.
type EntryStore interface {
	ListEntries(ctx context.Context, ownerID string) ([]core.OneTimeEntry, error)
	GetEntry(ctx context.Context, ownerID, id string) (core.OneTimeEntry, error)
	// SaveEntry inserts or replaces the entry with the same id.
	SaveEntry(ctx context.Context, ownerID string, e core.OneTimeEntry) error
	DeleteEntry(ctx context.Context, ownerID, id string) error
}

// RuleStore persists recurring rules scoped by owner.
type RuleStore interface {
	ListRules(ctx context.Context, ownerID string) ([]core.Rule, error)
	GetRule(ctx context.Context, ownerID, id string) (core.Rule, error)
	SaveRule(ctx context.Context, ownerID string, r core.Rule) error
	// DeleteRule also removes the rule's overrides.
	DeleteRule(ctx context.Context, ownerID, id string) error
}

// OverrideStore persists per-occurrence overrides scoped by owner.
type OverrideStore interface {
	ListOverrides(ctx context.Context, ownerID string) ([]core.Override, error)
	GetOverride(ctx context.Context, ownerID, id string) (core.Override, error)
	SaveOverride(ctx context.Context, ownerID string, o core.Override) error
	DeleteOverride(ctx context.Context, ownerID, id string) error
}

// OwnerDirectory lists the owners known to the system.
type OwnerDirectory interface {
	ListOwners(ctx context.Context) ([]core.Owner, error)
	GetOwner(ctx context.Context, id string) (core.Owner, error)
	SaveOwner(ctx context.Context, o core.Owner) error
}

// Backend represents a unified backend interface that provides all necessary operations
type Backend interface {
	EntryStore
	RuleStore
	OverrideStore
	OwnerDirectory
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
