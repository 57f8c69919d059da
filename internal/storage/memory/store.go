package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bilancio/internal/core"
)

type ownerData struct {
	entries   map[string]core.OneTimeEntry
	rules     map[string]core.Rule
	overrides map[string]core.Override
}

// Store keeps budget data in process memory. Values are copied in and out.
type Store struct {
	mu     sync.RWMutex
	owners map[string]core.Owner
	data   map[string]*ownerData
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		owners: map[string]core.Owner{},
		data:   map[string]*ownerData{},
		now:    time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// bucket returns the owner's data, creating it when create is set. Callers hold mu.
func (s *Store) bucket(ownerID string, create bool) *ownerData {
	d, ok := s.data[ownerID]
	if !ok && create {
		d = &ownerData{
			entries:   map[string]core.OneTimeEntry{},
			rules:     map[string]core.Rule{},
			overrides: map[string]core.Override{},
		}
		s.data[ownerID] = d
	}
	return d
}

// ownedElsewhere reports whether id is stored under an owner other than ownerID.
func ownedElsewhere[V any](s *Store, ownerID string, pick func(*ownerData) map[string]V, id string) bool {
	for other, d := range s.data {
		if other == ownerID {
			continue
		}
		if _, ok := pick(d)[id]; ok {
			return true
		}
	}
	return false
}

func (s *Store) ListEntries(_ context.Context, ownerID string) ([]core.OneTimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.bucket(ownerID, false)
	if d == nil {
		return nil, nil
	}
	out := make([]core.OneTimeEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, ownerID, id string) (core.OneTimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.bucket(ownerID, false); d != nil {
		if e, ok := d.entries[id]; ok {
			return e, nil
		}
	}
	return core.OneTimeEntry{}, fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
}

func (s *Store) SaveEntry(_ context.Context, ownerID string, e core.OneTimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownedElsewhere(s, ownerID, func(d *ownerData) map[string]core.OneTimeEntry { return d.entries }, e.ID) {
		return fmt.Errorf("entry %s: %w", e.ID, core.ErrNotFound)
	}
	s.bucket(ownerID, true).entries[e.ID] = e
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(ownerID, false)
	if d == nil {
		return fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
	}
	if _, ok := d.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
	}
	delete(d.entries, id)
	return nil
}

func (s *Store) ListRules(_ context.Context, ownerID string) ([]core.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.bucket(ownerID, false)
	if d == nil {
		return nil, nil
	}
	out := make([]core.Rule, 0, len(d.rules))
	for _, r := range d.rules {
		out = append(out, copyRule(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetRule(_ context.Context, ownerID, id string) (core.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.bucket(ownerID, false); d != nil {
		if r, ok := d.rules[id]; ok {
			return copyRule(r), nil
		}
	}
	return core.Rule{}, fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
}

func (s *Store) SaveRule(_ context.Context, ownerID string, r core.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownedElsewhere(s, ownerID, func(d *ownerData) map[string]core.Rule { return d.rules }, r.ID) {
		return fmt.Errorf("rule %s: %w", r.ID, core.ErrNotFound)
	}
	s.bucket(ownerID, true).rules[r.ID] = copyRule(r)
	return nil
}

// DeleteRule removes the rule together with its overrides.
func (s *Store) DeleteRule(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(ownerID, false)
	if d == nil {
		return fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
	}
	if _, ok := d.rules[id]; !ok {
		return fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
	}
	delete(d.rules, id)
	for oid, o := range d.overrides {
		if o.RuleID == id {
			delete(d.overrides, oid)
		}
	}
	return nil
}

func (s *Store) ListOverrides(_ context.Context, ownerID string) ([]core.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.bucket(ownerID, false)
	if d == nil {
		return nil, nil
	}
	out := make([]core.Override, 0, len(d.overrides))
	for _, o := range d.overrides {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetOverride(_ context.Context, ownerID, id string) (core.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.bucket(ownerID, false); d != nil {
		if o, ok := d.overrides[id]; ok {
			return o, nil
		}
	}
	return core.Override{}, fmt.Errorf("override %s: %w", id, core.ErrNotFound)
}

func (s *Store) SaveOverride(_ context.Context, ownerID string, o core.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownedElsewhere(s, ownerID, func(d *ownerData) map[string]core.Override { return d.overrides }, o.ID) {
		return fmt.Errorf("override %s: %w", o.ID, core.ErrNotFound)
	}
	d := s.bucket(ownerID, true)
	if prev, ok := d.overrides[o.ID]; ok && o.CreatedAt.IsZero() {
		o.CreatedAt = prev.CreatedAt
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	d.overrides[o.ID] = o
	return nil
}

func (s *Store) DeleteOverride(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(ownerID, false)
	if d == nil {
		return fmt.Errorf("override %s: %w", id, core.ErrNotFound)
	}
	if _, ok := d.overrides[id]; !ok {
		return fmt.Errorf("override %s: %w", id, core.ErrNotFound)
	}
	delete(d.overrides, id)
	return nil
}

func (s *Store) ListOwners(context.Context) ([]core.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Owner, 0, len(s.owners))
	for _, o := range s.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetOwner(_ context.Context, id string) (core.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[id]
	if !ok {
		return core.Owner{}, fmt.Errorf("owner %s: %w", id, core.ErrNotFound)
	}
	return o, nil
}

func (s *Store) SaveOwner(_ context.Context, o core.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[o.ID] = o
	return nil
}

func copyRule(r core.Rule) core.Rule {
	if r.DayOfWeek != nil {
		v := *r.DayOfWeek
		r.DayOfWeek = &v
	}
	return r
}
