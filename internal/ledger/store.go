package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// Changes is a set of absolute values to write in one unit. Block is the
// height the changes were staged at; the store keeps the highest seen.
type Changes struct {
	Positions map[Key]Position
	Reserves  map[common.Address]*uint256.Int
	Block     uint64
}

func (c Changes) IsEmpty() bool {
	return len(c.Positions) == 0 && len(c.Reserves) == 0
}

// Store persists positions and reserves. Commit must apply all of a change
// set or none of it. Missing entries read as zero.
//
// InitEpoch records candidate as the epoch unless one is already stored and
// returns the stored value. Height is the highest block of any commit.
type Store interface {
	Position(ctx context.Context, key Key) (Position, error)
	Reserve(ctx context.Context, token common.Address) (*uint256.Int, error)
	Commit(ctx context.Context, changes Changes) error
	InitEpoch(ctx context.Context, candidate uint64) (uint64, error)
	Height(ctx context.Context) (uint64, error)
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[Key]Position
	reserves  map[common.Address]*uint256.Int
	epoch     *uint64
	height    uint64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[Key]Position),
		reserves:  make(map[common.Address]*uint256.Int),
	}
}

func (m *MemoryStore) Position(_ context.Context, key Key) (Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.positions[key]
	if !ok {
		return EmptyPosition(), nil
	}
	return p.Clone(), nil
}

func (m *MemoryStore) Reserve(_ context.Context, token common.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reserves[token]
	if !ok {
		return u256.Zero(), nil
	}
	return r.Clone(), nil
}

func (m *MemoryStore) Commit(_ context.Context, changes Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, p := range changes.Positions {
		if p.IsEmpty() {
			delete(m.positions, k)
			continue
		}
		m.positions[k] = p.Clone()
	}
	for t, r := range changes.Reserves {
		m.reserves[t] = r.Clone()
	}
	m.height = max(m.height, changes.Block)
	return nil
}

func (m *MemoryStore) InitEpoch(_ context.Context, candidate uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch == nil {
		m.epoch = &candidate
	}
	return *m.epoch, nil
}

func (m *MemoryStore) Height(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height, nil
}
