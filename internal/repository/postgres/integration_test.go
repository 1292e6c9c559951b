//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/freeeve/critical-mass/internal/model"
	"github.com/freeeve/critical-mass/internal/testutil"
)

var testDB *sql.DB

func setup(t *testing.T) (*GameRepo, *UserRepo, *MoveRepo, *MessageRepo) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
	return NewGameRepo(testDB), NewUserRepo(testDB), NewMoveRepo(testDB), NewMessageRepo(testDB)
}

func mkUser(t *testing.T, users *UserRepo, name string) *model.User {
	t.Helper()
	u, err := users.Upsert(context.Background(), "dev", name, name, "")
	if err != nil {
		t.Fatalf("upsert user %s: %v", name, err)
	}
	return u
}

func TestUserUpsertIsIdempotent(t *testing.T) {
	_, users, _, _ := setup(t)
	a := mkUser(t, users, "alice")
	b := mkUser(t, users, "alice")
	if a.ID != b.ID {
		t.Errorf("upserting the same provider identity twice created two users: %s vs %s", a.ID, b.ID)
	}
}

func TestGameLifecycle(t *testing.T) {
	games, users, _, _ := setup(t)
	ctx := context.Background()
	creator := mkUser(t, users, "creator")
	other := mkUser(t, users, "other")

	g, err := games.Create(ctx, "first blood", creator.ID, 6, 5, 2, 30)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Status != "waiting" || g.Width != 6 || g.Height != 5 {
		t.Fatalf("unexpected created game: %+v", g)
	}

	if err := games.JoinGame(ctx, g.ID, creator.ID); err != nil {
		t.Fatalf("join creator: %v", err)
	}
	if err := games.JoinGame(ctx, g.ID, other.ID); err != nil {
		t.Fatalf("join other: %v", err)
	}
	count, err := games.PlayerCount(ctx, g.ID)
	if err != nil || count != 2 {
		t.Fatalf("player count = %d, err %v", count, err)
	}

	seats := map[string]int{creator.ID: 1, other.ID: 2}
	if err := games.AssignSeats(ctx, g.ID, seats); err != nil {
		t.Fatalf("assign seats: %v", err)
	}
	g, err = games.FindByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if g.Status != "active" || g.StartedAt == nil {
		t.Errorf("assigning seats should activate the game: %+v", g)
	}
	for _, p := range g.Players {
		if p.Seat != seats[p.UserID] {
			t.Errorf("player %s has seat %d, want %d", p.UserID, p.Seat, seats[p.UserID])
		}
	}

	if err := games.SetEliminated(ctx, g.ID, 2); err != nil {
		t.Fatalf("set eliminated: %v", err)
	}
	if err := games.SetFinished(ctx, g.ID, 1); err != nil {
		t.Fatalf("set finished: %v", err)
	}
	g, _ = games.FindByID(ctx, g.ID)
	if g.Status != "finished" || g.WinnerSeat != 1 || g.FinishedAt == nil {
		t.Errorf("unexpected finished game: %+v", g)
	}
}

func TestReplaceBot(t *testing.T) {
	games, users, _, _ := setup(t)
	ctx := context.Background()
	creator := mkUser(t, users, "creator")
	human := mkUser(t, users, "human")
	botUser := mkUser(t, users, "bot-1")

	g, err := games.Create(ctx, "bot swap", creator.ID, 4, 4, 2, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := games.JoinGame(ctx, g.ID, creator.ID); err != nil {
		t.Fatalf("join creator: %v", err)
	}
	if err := games.JoinGameAsBot(ctx, g.ID, botUser.ID, "medium"); err != nil {
		t.Fatalf("join bot: %v", err)
	}
	if err := games.ReplaceBot(ctx, g.ID, human.ID); err != nil {
		t.Fatalf("replace bot: %v", err)
	}

	players, err := games.ListPlayers(ctx, g.ID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, p := range players {
		if p.IsBot {
			t.Errorf("bot %s still seated after replacement", p.UserID)
		}
	}
	if len(players) != 2 {
		t.Errorf("expected 2 players after replacement, got %d", len(players))
	}
}

func TestMoveLogRoundTrip(t *testing.T) {
	games, users, moves, _ := setup(t)
	ctx := context.Background()
	creator := mkUser(t, users, "creator")

	g, err := games.Create(ctx, "move log", creator.ID, 4, 4, 2, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for turn := 1; turn <= 3; turn++ {
		m := &model.Move{GameID: g.ID, TurnNumber: turn, Seat: turn%2 + 1, X: turn, Y: 0, Cascaded: turn == 3}
		if err := moves.Save(ctx, m); err != nil {
			t.Fatalf("save move %d: %v", turn, err)
		}
		if m.ID == "" || m.CreatedAt.IsZero() {
			t.Errorf("save did not fill id/timestamp: %+v", m)
		}
	}

	list, err := moves.ListByGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(list))
	}
	for i, m := range list {
		if m.TurnNumber != i+1 {
			t.Errorf("move %d out of order: turn %d", i, m.TurnNumber)
		}
	}
	if !list[2].Cascaded {
		t.Error("cascaded flag lost on round trip")
	}

	count, err := moves.CountByGame(ctx, g.ID)
	if err != nil || count != 3 {
		t.Errorf("count = %d, err %v", count, err)
	}
}

func TestMessagesVisibility(t *testing.T) {
	games, users, _, messages := setup(t)
	ctx := context.Background()
	a := mkUser(t, users, "a")
	b := mkUser(t, users, "b")
	c := mkUser(t, users, "c")

	g, err := games.Create(ctx, "chatty", a.ID, 4, 4, 3, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := messages.Create(ctx, g.ID, a.ID, "", "hello all"); err != nil {
		t.Fatalf("public message: %v", err)
	}
	if _, err := messages.Create(ctx, g.ID, a.ID, b.ID, "psst"); err != nil {
		t.Fatalf("private message: %v", err)
	}

	seen, err := messages.ListByGame(ctx, g.ID, c.ID)
	if err != nil {
		t.Fatalf("list for c: %v", err)
	}
	if len(seen) != 1 {
		t.Errorf("c should only see the public message, got %d", len(seen))
	}
	seen, err = messages.ListByGame(ctx, g.ID, b.ID)
	if err != nil {
		t.Fatalf("list for b: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("b should see both messages, got %d", len(seen))
	}
}
