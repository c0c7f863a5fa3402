package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/paddock/internal/domain/model"
)

type naturalKey struct {
	userID   string
	eventID  string
	propType model.PropType
}

// MemoryStore keeps everything in process memory. It backs tests, the demo
// and single-node development runs.
type MemoryStore struct {
	now func() time.Time

	mu          sync.RWMutex
	picks       map[string]model.Pick
	pickIDs     map[naturalKey]string
	results     map[model.PairKey]model.Result
	scores      map[string]model.Score
	audit       []model.AuditEntry
	checkpoints map[model.PairKey]model.Checkpoint

	pairLocks sync.Map // model.PairKey -> *sync.Mutex
	closed    atomic.Bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		now:         func() time.Time { return time.Now().UTC() },
		picks:       make(map[string]model.Pick),
		pickIDs:     make(map[naturalKey]string),
		results:     make(map[model.PairKey]model.Result),
		scores:      make(map[string]model.Score),
		checkpoints: make(map[model.PairKey]model.Checkpoint),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutPick stores a pick. A second pick for the same user, event and prop
// type is rejected with ErrDuplicatePick.
func (s *MemoryStore) PutPick(_ context.Context, p model.Pick) error {
	if p.ID == "" {
		return fmt.Errorf("put pick: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	nk := naturalKey{userID: p.UserID, eventID: p.EventID, propType: p.PropType}
	if id, ok := s.pickIDs[nk]; ok && id != p.ID {
		return fmt.Errorf("put pick %s: %w", p.ID, ErrDuplicatePick)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.picks[p.ID] = p
	s.pickIDs[nk] = p.ID
	return nil
}

// PutResult ingests or corrects a result. UpdatedAt always moves forward so a
// correction is visible to discovery even when the clock has not advanced.
func (s *MemoryStore) PutResult(_ context.Context, r model.Result) model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, exists := s.results[r.Key()]
	switch {
	case exists:
		r.IngestedAt = prev.IngestedAt
		if !now.After(prev.UpdatedAt) {
			now = prev.UpdatedAt.Add(time.Microsecond)
		}
	case r.IngestedAt.IsZero():
		r.IngestedAt = now
	}
	r.UpdatedAt = now
	s.results[r.Key()] = r
	return r
}

// WithPairTx implements Store.
func (s *MemoryStore) WithPairTx(ctx context.Context, key model.PairKey, fn func(tx PairTx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	lock, _ := s.pairLocks.LoadOrStore(key, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{s: s, key: key, staged: make(map[string]model.Score)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ListPairStates implements Store.
func (s *MemoryStore) ListPairStates(ctx context.Context) ([]model.PairState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	missing := make(map[model.PairKey]bool)
	for _, p := range s.picks {
		if _, ok := s.scores[p.ID]; !ok {
			missing[p.Key()] = true
		}
	}

	states := make([]model.PairState, 0, len(s.results))
	for key, r := range s.results {
		st := model.PairState{Key: key, ResultUpdatedAt: r.UpdatedAt, MissingScores: missing[key]}
		if cp, ok := s.checkpoints[key]; ok {
			st.Checkpoint = &cp
		}
		states = append(states, st)
	}
	slices.SortFunc(states, func(a, b model.PairState) int {
		return cmp.Or(
			a.ResultUpdatedAt.Compare(b.ResultUpdatedAt),
			cmp.Compare(a.Key.EventID, b.Key.EventID),
			cmp.Compare(a.Key.PropType, b.Key.PropType),
		)
	})
	return states, nil
}

// ListScores implements Reader.
func (s *MemoryStore) ListScores(_ context.Context, f ScoreFilter) ([]model.Score, error) {
	limit, err := NormalizeLimit(f.Limit)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Score, 0)
	for _, sc := range s.scores {
		if f.EventID != "" && sc.EventID != f.EventID ||
			f.UserID != "" && sc.UserID != f.UserID ||
			f.PropType != "" && sc.PropType != f.PropType ||
			len(f.PickIDs) > 0 && !slices.Contains(f.PickIDs, sc.PickID) {
			continue
		}
		out = append(out, sc)
	}
	slices.SortFunc(out, func(a, b model.Score) int {
		return cmp.Or(
			cmp.Compare(a.EventID, b.EventID),
			cmp.Compare(a.PropType, b.PropType),
			cmp.Compare(a.PickID, b.PickID),
		)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListAudit implements Reader. Entries come newest first.
func (s *MemoryStore) ListAudit(_ context.Context, f AuditFilter) ([]model.AuditEntry, error) {
	limit, err := NormalizeLimit(f.Limit)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.audit[i]
		if f.EntityID != "" && e.EntityID != f.EntityID ||
			f.PickID != "" && e.PickID != f.PickID ||
			f.EventID != "" && e.EventID != f.EventID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Counts implements Reader.
func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Picks:        len(s.picks),
		Results:      len(s.results),
		Scores:       len(s.scores),
		AuditEntries: len(s.audit),
		Checkpoints:  len(s.checkpoints),
	}, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

// memTx stages writes and applies them on commit.
type memTx struct {
	s          *MemoryStore
	key        model.PairKey
	staged     map[string]model.Score
	audit      []model.AuditEntry
	checkpoint *model.Checkpoint
}

func (tx *memTx) Result(_ context.Context) (model.Result, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	r, ok := tx.s.results[tx.key]
	if !ok {
		return model.Result{}, fmt.Errorf("result %s: %w", tx.key, ErrNotFound)
	}
	return r, nil
}

func (tx *memTx) Picks(_ context.Context) ([]model.Pick, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	out := make([]model.Pick, 0)
	for _, p := range tx.s.picks {
		if p.Key() == tx.key {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Pick) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (tx *memTx) Scores(_ context.Context) (map[string]model.Score, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	out := make(map[string]model.Score)
	for id, sc := range tx.s.scores {
		if sc.EventID == tx.key.EventID && sc.PropType == tx.key.PropType {
			out[id] = sc
		}
	}
	for id, sc := range tx.staged {
		out[id] = sc
	}
	return out, nil
}

func (tx *memTx) UpsertScore(_ context.Context, sc model.Score) error {
	if sc.PickID == "" {
		return fmt.Errorf("upsert score: empty pick id")
	}
	tx.staged[sc.PickID] = sc
	return nil
}

func (tx *memTx) AppendAudit(_ context.Context, e model.AuditEntry) error {
	tx.audit = append(tx.audit, e)
	return nil
}

func (tx *memTx) SaveCheckpoint(_ context.Context, c model.Checkpoint) error {
	tx.checkpoint = &c
	return nil
}

func (tx *memTx) commit() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for id, sc := range tx.staged {
		tx.s.scores[id] = sc
	}
	tx.s.audit = append(tx.s.audit, tx.audit...)
	if tx.checkpoint != nil {
		tx.s.checkpoints[tx.key] = *tx.checkpoint
	}
}
