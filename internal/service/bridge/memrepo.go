package bridge

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/chess-bridge/internal/domain"
)

// memrepo is the in-process archive used when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID    int64
	gamesByID map[int64]*domain.GameRecord
	bySession map[string]*domain.GameRecord
}

func NewMemoryRepository() Repository {
	return &memrepo{
		gamesByID: make(map[int64]*domain.GameRecord),
		bySession: make(map[string]*domain.GameRecord),
	}
}

func (m *memrepo) InsertGame(_ context.Context, game *domain.GameRecord) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySession[game.SessionUUID]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	stored := cloneRecord(game)
	stored.ID = m.nextID
	m.gamesByID[stored.ID] = stored
	m.bySession[stored.SessionUUID] = stored
	return stored.ID, nil
}

func (m *memrepo) GetGameBySession(_ context.Context, sessionUUID string) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	game, ok := m.bySession[sessionUUID]
	if !ok {
		return nil, nil
	}
	return cloneRecord(game), nil
}

func (m *memrepo) GetRecentGames(_ context.Context, limit int) ([]*domain.GameRecord, error) {
	m.mu.RLock()
	items := make([]*domain.GameRecord, 0, len(m.gamesByID))
	for _, g := range m.gamesByID {
		items = append(items, cloneRecord(g))
	}
	m.mu.RUnlock()

	// EndedAt desc, then ID desc
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func cloneRecord(g *domain.GameRecord) *domain.GameRecord {
	c := *g
	c.MovesUCI = append([]string(nil), g.MovesUCI...)
	c.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &c
}
