//go:build integration

package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/freeeve/repower/internal/config"
	"github.com/freeeve/repower/internal/model"
	"github.com/freeeve/repower/internal/repository/postgres"
	redisrepo "github.com/freeeve/repower/internal/repository/redis"
	"github.com/freeeve/repower/internal/testutil"
	"github.com/freeeve/repower/pkg/repower"
)

// testEnv holds shared test infrastructure.
type testEnv struct {
	db        *sql.DB
	rdb       *goredis.Client
	userRepo  *postgres.UserRepo
	matchRepo *postgres.MatchRepo
	turnRepo  *postgres.TurnRepo
	notifRepo *postgres.NotificationRepo
	cache     *redisrepo.Client
}

var env *testEnv

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	if env == nil {
		db := testutil.SetupDB(t)
		rdb := testutil.SetupRedis(t)
		env = &testEnv{
			db:        db,
			rdb:       rdb,
			userRepo:  postgres.NewUserRepo(db),
			matchRepo: postgres.NewMatchRepo(db),
			turnRepo:  postgres.NewTurnRepo(db),
			notifRepo: postgres.NewNotificationRepo(db),
			cache:     redisrepo.NewClientFromPool(rdb),
		}
	}
	testutil.CleanupDB(t, env.db)
	testutil.CleanupRedis(t, env.rdb)
	return env
}

type services struct {
	turns    *TurnService
	matches  *MatchService
	commands *CommandService
	notifs   *NotificationService
}

func newServices(e *testEnv, rules config.Rules) services {
	notifs := NewNotificationService(e.notifRepo, nil)
	turns := NewTurnService(e.matchRepo, e.turnRepo, e.cache, TurnOptions{Rules: rules, ResolveLockTTL: 10 * time.Second}, nil, notifs)
	return services{
		turns:    turns,
		matches:  NewMatchService(e.matchRepo, e.turnRepo, e.cache, turns),
		commands: NewCommandService(turns, e.cache),
		notifs:   notifs,
	}
}

func createUsers(t *testing.T, repo *postgres.UserRepo, names ...string) []*model.User {
	t.Helper()
	var users []*model.User
	for _, n := range names {
		u, err := repo.Upsert(context.Background(), "test", "test-"+n, n, "")
		if err != nil {
			t.Fatalf("create user %s: %v", n, err)
		}
		users = append(users, u)
	}
	return users
}

// startMatch creates an Alpha match with two players and starts it.
func startMatch(t *testing.T, e *testEnv, s services) (*model.Match, []*model.User) {
	t.Helper()
	ctx := context.Background()
	users := createUsers(t, e.userRepo, "north", "south")

	m, err := s.matches.CreateMatch(ctx, "Integration", users[0].ID, "alpha")
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	if _, err := s.matches.JoinMatch(ctx, m.ID, users[1].ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, u := range users {
		if err := s.matches.Ready(ctx, m.ID, u.ID); err != nil {
			t.Fatalf("ready %s: %v", u.DisplayName, err)
		}
	}
	m, err = s.matches.GetMatch(ctx, m.ID, users[0].ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return m, users
}

// TestFullMatchLifecycle covers create, join, start, command, resolve.
func TestFullMatchLifecycle(t *testing.T) {
	e := setupEnv(t)
	s := newServices(e, config.Rules{})
	ctx := context.Background()

	m, users := startMatch(t, e, s)
	if m.Status != "playing" || len(m.Players) != 2 {
		t.Fatalf("expected a playing two-seat match, got %+v", m)
	}
	north, south := users[0].ID, users[1].ID

	raw, err := e.cache.GetTurnState(ctx, m.ID)
	if err != nil || raw == nil {
		t.Fatalf("expected cached board: %v", err)
	}

	cmd, err := s.commands.SubmitCommand(ctx, m.ID, north, CommandSpec{
		Type: "move", TokenType: int(repower.Infantry),
		Source: int(repower.NorthReserve), Destination: int(repower.NorthHQ),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := s.turns.SetReady(ctx, m.ID, north); err != nil {
		t.Fatalf("ready north: %v", err)
	}
	if err := s.turns.SetReady(ctx, m.ID, south); err != nil {
		t.Fatalf("ready south: %v", err)
	}

	turns, err := s.turns.ListTurns(ctx, m.ID, north)
	if err != nil || len(turns) != 2 {
		t.Fatalf("expected two turns, got %d (%v)", len(turns), err)
	}
	if turns[0].ResolvedAt == nil || turns[1].ResolvedAt != nil {
		t.Error("turn 1 should be resolved and turn 2 open")
	}

	stored, err := s.turns.TurnCommands(ctx, m.ID, south, 1)
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected one stored command, got %d (%v)", len(stored), err)
	}
	if stored[0].ID != cmd.ID || stored[0].Valid != "valid" {
		t.Errorf("unexpected stored command %+v", stored[0])
	}

	raw, _ = e.cache.GetTurnState(ctx, m.ID)
	ts, err := decodeState(raw)
	if err != nil || ts.Number != 2 {
		t.Fatalf("expected cached turn 2 board: %v", err)
	}
	if ready, _ := e.cache.ReadyPlayers(ctx, m.ID); len(ready) != 0 {
		t.Errorf("ready set should be cleared, got %v", ready)
	}

	divs, err := NewReplayer(e.matchRepo, e.turnRepo, config.Rules{}).ReplayMatch(ctx, m.ID)
	if err != nil || len(divs) != 0 {
		t.Errorf("stored history should replay cleanly, got %+v (%v)", divs, err)
	}
}

// TestConcurrentReadyResolvesOnce marks both players ready at the same time.
func TestConcurrentReadyResolvesOnce(t *testing.T) {
	e := setupEnv(t)
	s := newServices(e, config.Rules{})
	ctx := context.Background()
	m, users := startMatch(t, e, s)

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.turns.SetReady(ctx, m.ID, id); err != nil {
				t.Errorf("ready %s: %v", id, err)
			}
		}(u.ID)
	}
	wg.Wait()

	turns, err := e.turnRepo.ListTurns(ctx, m.ID)
	if err != nil || len(turns) != 2 {
		t.Fatalf("expected exactly one resolution, got %d turns (%v)", len(turns), err)
	}
}

// TestRecoveryAfterRestart drops every cached key and rebuilds from Postgres.
func TestRecoveryAfterRestart(t *testing.T) {
	e := setupEnv(t)
	s := newServices(e, config.Rules{})
	ctx := context.Background()
	m, users := startMatch(t, e, s)

	testutil.CleanupRedis(t, e.rdb)
	for _, u := range users {
		e.cache.MarkReady(ctx, m.ID, u.ID)
	}

	restarted := newServices(e, config.Rules{})
	if err := restarted.turns.RecoverMatches(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	cur, err := e.turnRepo.CurrentTurn(ctx, m.ID)
	if err != nil || cur == nil || cur.Number != 2 {
		t.Fatalf("expected turn 2 after recovery, got %+v (%v)", cur, err)
	}
}

// TestLeaveFinishesMatch has one of two players leave mid-match.
func TestLeaveFinishesMatch(t *testing.T) {
	e := setupEnv(t)
	s := newServices(e, config.Rules{})
	ctx := context.Background()
	m, users := startMatch(t, e, s)

	if err := s.matches.LeaveMatch(ctx, m.ID, users[1].ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got, err := e.matchRepo.FindByID(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "finished" || len(got.Winners) != 1 || got.Winners[0] != users[0].ID {
		t.Errorf("remaining player should win, got %+v", got)
	}
	if raw, _ := e.cache.GetTurnState(ctx, m.ID); raw != nil {
		t.Error("cache should be dropped for a finished match")
	}

	notes, err := s.notifs.List(ctx, users[0].ID, true)
	if err != nil || len(notes) == 0 {
		t.Errorf("the winner should be notified, got %d (%v)", len(notes), err)
	}
}
