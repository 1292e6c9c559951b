package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/freeeve/critical-mass/internal/model"
)

// In-memory repo and cache fakes. The services under test are real; only
// the storage behind them is faked.

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Provider == provider && u.ProviderID == providerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			cp := *u
			return &cp, nil
		}
	}
	r.seq++
	u := &model.User{
		ID:          fmt.Sprintf("user-%d", r.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.DisplayName = displayName
	}
	return nil
}

type memGameRepo struct {
	mu      sync.Mutex
	seq     int
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
}

func newMemGameRepo() *memGameRepo {
	return &memGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
	}
}

func (r *memGameRepo) Create(_ context.Context, name, creatorID string, width, height, maxPlayers, turnSeconds int) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	g := &model.Game{
		ID:          fmt.Sprintf("game-%d", r.seq),
		Name:        name,
		CreatorID:   creatorID,
		Status:      "waiting",
		Width:       width,
		Height:      height,
		MaxPlayers:  maxPlayers,
		TurnSeconds: turnSeconds,
		CreatedAt:   time.Now(),
	}
	r.games[g.ID] = g
	cp := *g
	return &cp, nil
}

func (r *memGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = append([]model.GamePlayer(nil), r.players[id]...)
	return &cp, nil
}

func (r *memGameRepo) listByStatus(status string) []model.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Game
	for _, g := range r.games {
		if g.Status == status {
			out = append(out, *g)
		}
	}
	return out
}

func (r *memGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	return r.listByStatus("waiting"), nil
}

func (r *memGameRepo) ListFinished(_ context.Context) ([]model.Game, error) {
	return r.listByStatus("finished"), nil
}

func (r *memGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	return r.listByStatus("active"), nil
}

func (r *memGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Game
	for id, g := range r.games {
		for _, p := range r.players[id] {
			if p.UserID == userID {
				out = append(out, *g)
				break
			}
		}
	}
	return out, nil
}

func (r *memGameRepo) JoinGame(_ context.Context, gameID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[gameID] = append(r.players[gameID], model.GamePlayer{
		GameID: gameID, UserID: userID, JoinedAt: time.Now(),
	})
	return nil
}

func (r *memGameRepo) JoinGameAsBot(_ context.Context, gameID, userID, difficulty string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[gameID] = append(r.players[gameID], model.GamePlayer{
		GameID: gameID, UserID: userID, IsBot: true, BotDifficulty: difficulty, JoinedAt: time.Now(),
	})
	return nil
}

func (r *memGameRepo) ReplaceBot(_ context.Context, gameID, newUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.players[gameID]
	for i := range ps {
		if ps[i].IsBot {
			ps[i].UserID = newUserID
			ps[i].IsBot = false
			ps[i].BotDifficulty = ""
			return nil
		}
	}
	return fmt.Errorf("no bot seat in game %s", gameID)
}

func (r *memGameRepo) PlayerCount(_ context.Context, gameID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players[gameID]), nil
}

func (r *memGameRepo) AssignSeats(_ context.Context, gameID string, seats map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.players[gameID]
	for i := range ps {
		ps[i].Seat = seats[ps[i].UserID]
	}
	g := r.games[gameID]
	g.Status = "active"
	now := time.Now()
	g.StartedAt = &now
	return nil
}

func (r *memGameRepo) SetEliminated(_ context.Context, gameID string, seat int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.players[gameID]
	for i := range ps {
		if ps[i].Seat == seat {
			ps[i].Eliminated = true
		}
	}
	return nil
}

func (r *memGameRepo) SetFinished(_ context.Context, gameID string, winnerSeat int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[gameID]
	if !ok {
		return fmt.Errorf("game %s not found", gameID)
	}
	g.Status = "finished"
	g.WinnerSeat = winnerSeat
	now := time.Now()
	g.FinishedAt = &now
	return nil
}

func (r *memGameRepo) Delete(_ context.Context, gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
	delete(r.players, gameID)
	return nil
}

func (r *memGameRepo) UpdateBotDifficulty(_ context.Context, gameID, botUserID, difficulty string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.players[gameID]
	for i := range ps {
		if ps[i].UserID == botUserID && ps[i].IsBot {
			ps[i].BotDifficulty = difficulty
			return nil
		}
	}
	return fmt.Errorf("no bot %s in game %s", botUserID, gameID)
}

type memMoveRepo struct {
	mu    sync.Mutex
	seq   int
	moves map[string][]model.Move
}

func newMemMoveRepo() *memMoveRepo {
	return &memMoveRepo{moves: make(map[string][]model.Move)}
}

func (r *memMoveRepo) Save(_ context.Context, m *model.Move) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.ID = fmt.Sprintf("move-%d", r.seq)
	m.CreatedAt = time.Now()
	r.moves[m.GameID] = append(r.moves[m.GameID], *m)
	return nil
}

func (r *memMoveRepo) ListByGame(_ context.Context, gameID string) ([]model.Move, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Move(nil), r.moves[gameID]...), nil
}

func (r *memMoveRepo) CountByGame(_ context.Context, gameID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.moves[gameID]), nil
}

type memCache struct {
	mu     sync.Mutex
	states map[string]json.RawMessage
	ready  map[string]map[string]bool
	timers map[string]time.Time
}

func newMemCache() *memCache {
	return &memCache{
		states: make(map[string]json.RawMessage),
		ready:  make(map[string]map[string]bool),
		timers: make(map[string]time.Time),
	}
}

func (c *memCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[gameID] = append(json.RawMessage(nil), state...)
	return nil
}

func (c *memCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[gameID], nil
}

func (c *memCache) MarkReady(_ context.Context, gameID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready[gameID] == nil {
		c.ready[gameID] = make(map[string]bool)
	}
	c.ready[gameID][userID] = true
	return nil
}

func (c *memCache) UnmarkReady(_ context.Context, gameID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ready[gameID], userID)
	return nil
}

func (c *memCache) ReadyCount(_ context.Context, gameID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.ready[gameID])), nil
}

func (c *memCache) ReadyUsers(_ context.Context, gameID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for u := range c.ready[gameID] {
		out = append(out, u)
	}
	return out, nil
}

func (c *memCache) SetTimer(_ context.Context, gameID string, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[gameID] = deadline
	return nil
}

func (c *memCache) GetTimer(_ context.Context, gameID string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[gameID], nil
}

func (c *memCache) ClearTimer(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, gameID)
	return nil
}

func (c *memCache) DeleteGameData(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, gameID)
	delete(c.ready, gameID)
	delete(c.timers, gameID)
	return nil
}

// recordBroadcaster captures events for assertions.
type recordBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	gameID    string
	eventType string
	data      any
}

func (b *recordBroadcaster) BroadcastGameEvent(gameID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{gameID, eventType, data})
}

func (b *recordBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.eventType
	}
	return out
}

func (b *recordBroadcaster) has(eventType string) bool {
	for _, t := range b.types() {
		if t == eventType {
			return true
		}
	}
	return false
}

type testEnv struct {
	users   *memUserRepo
	games   *memGameRepo
	moves   *memMoveRepo
	cache   *memCache
	bc      *recordBroadcaster
	match   *MatchService
	gameSvc *GameService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users: newMemUserRepo(),
		games: newMemGameRepo(),
		moves: newMemMoveRepo(),
		cache: newMemCache(),
		bc:    &recordBroadcaster{},
	}
	env.match = NewMatchService(env.games, env.moves, env.cache, env.bc)
	env.gameSvc = NewGameService(env.games, env.users, env.match, nil)
	return env
}

// seatedGame stores an active game with users u1..uN holding seats 1..N and
// returns it with players loaded.
func seatedGame(t *testing.T, env *testEnv, width, height, numPlayers, turnSeconds int) *model.Game {
	t.Helper()
	ctx := context.Background()
	g, err := env.games.Create(ctx, "test", "u1", width, height, numPlayers, turnSeconds)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	seats := make(map[string]int, numPlayers)
	for i := 1; i <= numPlayers; i++ {
		uid := fmt.Sprintf("u%d", i)
		if err := env.games.JoinGame(ctx, g.ID, uid); err != nil {
			t.Fatalf("join %s: %v", uid, err)
		}
		seats[uid] = i
	}
	if err := env.games.AssignSeats(ctx, g.ID, seats); err != nil {
		t.Fatalf("assign seats: %v", err)
	}
	full, err := env.games.FindByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("reload game: %v", err)
	}
	return full
}

// putState overwrites the cached live state directly.
func putState(t *testing.T, env *testEnv, gameID string, st *LiveState) {
	t.Helper()
	raw, err := st.encode()
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	if err := env.cache.SetGameState(context.Background(), gameID, raw); err != nil {
		t.Fatalf("set state: %v", err)
	}
}
