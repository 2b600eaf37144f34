package service

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgo/questline/api/internal/events"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

// ============================================================================
// Mock Progress Store
// ============================================================================

type mockProgressStore struct {
	readEntityFunc        func(ctx context.Context, ref model.EntityRef) (*model.Entity, error)
	writeEntityFunc       func(ctx context.Context, ref model.EntityRef, w model.EntityWrite) (*model.Entity, error)
	createEntityFunc      func(ctx context.Context, ref model.EntityRef, initial map[progression.Field]int64) (*model.Entity, error)
	listGuildProgressFunc func(ctx context.Context, userID string) ([]*model.Entity, error)
}

func (m *mockProgressStore) ReadEntity(ctx context.Context, ref model.EntityRef) (*model.Entity, error) {
	if m.readEntityFunc != nil {
		return m.readEntityFunc(ctx, ref)
	}
	return nil, nil
}

func (m *mockProgressStore) WriteEntity(ctx context.Context, ref model.EntityRef, w model.EntityWrite) (*model.Entity, error) {
	if m.writeEntityFunc != nil {
		return m.writeEntityFunc(ctx, ref, w)
	}
	return nil, nil
}

func (m *mockProgressStore) CreateEntity(ctx context.Context, ref model.EntityRef, initial map[progression.Field]int64) (*model.Entity, error) {
	if m.createEntityFunc != nil {
		return m.createEntityFunc(ctx, ref, initial)
	}
	return nil, nil
}

func (m *mockProgressStore) ListGuildProgress(ctx context.Context, userID string) ([]*model.Entity, error) {
	if m.listGuildProgressFunc != nil {
		return m.listGuildProgressFunc(ctx, userID)
	}
	return nil, nil
}

// ============================================================================
// In-memory Progress Store
// ============================================================================

// memStore behaves like a real store: versioned records, a unique
// (user, guild) key, native increments that do not clamp. Hooks run before
// the store takes its lock and can block or fail a call.
type memStore struct {
	mu      sync.Mutex
	seq     int
	records map[string]*model.Entity

	afterRead    func(ref model.EntityRef)
	beforeWrite  func(ref model.EntityRef, w model.EntityWrite) error
	beforeCreate func(ref model.EntityRef) error

	writes    atomic.Int32
	creates   atomic.Int32
	lastWrite model.EntityWrite
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.Entity)}
}

func (s *memStore) seed(e *model.Entity) *model.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Values == nil {
		e.Values = make(map[progression.Field]int64)
	}
	if e.Version == 0 {
		e.Version = 1
	}
	s.records[e.ID] = e
	return clone(e)
}

func (s *memStore) get(id string) *model.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.records[id]; ok {
		return clone(e)
	}
	return nil
}

func (s *memStore) byKey(userID, guildID string) *model.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.findLocked(model.GuildProgressKey(userID, guildID)))
}

func (s *memStore) findLocked(ref model.EntityRef) *model.Entity {
	if ref.HasID() {
		e := s.records[ref.ID]
		if e != nil && e.Kind != ref.Kind {
			return nil
		}
		return e
	}
	for _, e := range s.records {
		if e.Kind == ref.Kind && e.UserID == ref.UserID && e.GuildID == ref.GuildID {
			return e
		}
	}
	return nil
}

func (s *memStore) ReadEntity(_ context.Context, ref model.EntityRef) (*model.Entity, error) {
	s.mu.Lock()
	e := clone(s.findLocked(ref))
	s.mu.Unlock()
	if s.afterRead != nil {
		s.afterRead(ref)
	}
	return e, nil
}

func (s *memStore) WriteEntity(_ context.Context, ref model.EntityRef, w model.EntityWrite) (*model.Entity, error) {
	if s.beforeWrite != nil {
		if err := s.beforeWrite(ref, w); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes.Add(1)
	s.lastWrite = w

	e := s.findLocked(ref)
	if e == nil {
		return nil, nil
	}
	if w.ExpectedVersion != nil && *w.ExpectedVersion != e.Version {
		return nil, nil
	}
	for f, d := range w.Inc {
		e.Values[f] += d
	}
	maps.Copy(e.Values, w.Set)
	e.Version++
	e.UpdatedOn = time.Now()
	return clone(e), nil
}

func (s *memStore) CreateEntity(_ context.Context, ref model.EntityRef, initial map[progression.Field]int64) (*model.Entity, error) {
	if s.beforeCreate != nil {
		if err := s.beforeCreate(ref); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates.Add(1)

	if s.findLocked(ref) != nil {
		return nil, fmt.Errorf("guild_progress (%s, %s): %w", ref.UserID, ref.GuildID, model.ErrUniqueViolation)
	}
	s.seq++
	now := time.Now()
	e := &model.Entity{
		ID:        fmt.Sprintf("gp%d", s.seq),
		Kind:      ref.Kind,
		UserID:    ref.UserID,
		GuildID:   ref.GuildID,
		Values:    maps.Clone(initial),
		Version:   1,
		CreatedOn: now,
		UpdatedOn: now,
	}
	s.records[e.ID] = e
	return clone(e), nil
}

func (s *memStore) ListGuildProgress(_ context.Context, userID string) ([]*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Entity
	for _, e := range s.records {
		if e.Kind == progression.KindGuildProgress && e.UserID == userID {
			out = append(out, clone(e))
		}
	}
	return out, nil
}

func clone(e *model.Entity) *model.Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Values = maps.Clone(e.Values)
	return &c
}

// barrier blocks the first n callers until all n have arrived. Later
// callers pass straight through.
func barrier(n int32) func() {
	var arrived atomic.Int32
	var wg sync.WaitGroup
	wg.Add(int(n))
	return func() {
		if arrived.Add(1) > n {
			return
		}
		wg.Done()
		wg.Wait()
	}
}

// ============================================================================
// Mock Quest Directory
// ============================================================================

type mockDirectory struct {
	getContractFunc    func(ctx context.Context, id string) (*model.Contract, error)
	getQuestFunc       func(ctx context.Context, id string) (*model.Quest, error)
	getQuestGuildsFunc func(ctx context.Context, questID string) ([]*model.Guild, error)
	getGuildsFunc      func(ctx context.Context, ids []string) ([]*model.Guild, error)
	finishContractFunc func(ctx context.Context, id string) (bool, error)
}

func (m *mockDirectory) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	if m.getContractFunc != nil {
		return m.getContractFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockDirectory) GetQuest(ctx context.Context, id string) (*model.Quest, error) {
	if m.getQuestFunc != nil {
		return m.getQuestFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockDirectory) GetQuestGuilds(ctx context.Context, questID string) ([]*model.Guild, error) {
	if m.getQuestGuildsFunc != nil {
		return m.getQuestGuildsFunc(ctx, questID)
	}
	return nil, nil
}

func (m *mockDirectory) GetGuilds(ctx context.Context, ids []string) ([]*model.Guild, error) {
	if m.getGuildsFunc != nil {
		return m.getGuildsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *mockDirectory) FinishContract(ctx context.Context, id string) (bool, error) {
	if m.finishContractFunc != nil {
		return m.finishContractFunc(ctx, id)
	}
	return true, nil
}

// questDirectory serves one contract on one quest.
func questDirectory(contract *model.Contract, quest *model.Quest, guilds []*model.Guild) *mockDirectory {
	var mu sync.Mutex
	return &mockDirectory{
		getContractFunc: func(_ context.Context, id string) (*model.Contract, error) {
			mu.Lock()
			defer mu.Unlock()
			if id != contract.ID {
				return nil, nil
			}
			c := *contract
			return &c, nil
		},
		getQuestFunc: func(_ context.Context, id string) (*model.Quest, error) {
			if id != quest.ID {
				return nil, nil
			}
			return quest, nil
		},
		getQuestGuildsFunc: func(_ context.Context, questID string) ([]*model.Guild, error) {
			if questID != quest.ID {
				return nil, nil
			}
			return guilds, nil
		},
		getGuildsFunc: func(_ context.Context, ids []string) ([]*model.Guild, error) {
			return guilds, nil
		},
		finishContractFunc: func(_ context.Context, id string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if id != contract.ID || contract.Status != model.ContractActive {
				return false, nil
			}
			contract.Status = model.ContractFinished
			return true, nil
		},
	}
}

// ============================================================================
// Recording Publisher
// ============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
