// Command replay re-resolves the stored turns of matches and reports every
// turn whose stored outcome cannot be reproduced from its stored board and
// commands.
//
// Usage:
//
//	go run ./cmd/replay/ --match <id>[,<id>...]
//	go run ./cmd/replay/ --all
//
// The database and rule limits come from the same environment as the server.
// The exit status is 1 when any turn diverges.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/config"
	"github.com/freeeve/repower/internal/logger"
	"github.com/freeeve/repower/internal/repository/postgres"
	"github.com/freeeve/repower/internal/service"
)

type replayer interface {
	ReplayMatch(ctx context.Context, matchID string) ([]service.Divergence, error)
}

func main() {
	matchList := flag.String("match", "", "Comma-separated match IDs")
	all := flag.Bool("all", false, "Replay every started match")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(cfg.Log)

	ids := splitIDs(*matchList)
	if len(ids) == 0 && !*all {
		log.Fatal().Msg("--match or --all is required")
	}

	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	matchRepo := postgres.NewMatchRepo(db)
	ctx := context.Background()
	if *all {
		matches, err := matchRepo.ListByStatus(ctx, "playing", "paused", "finished", "aborted")
		if err != nil {
			log.Fatal().Err(err).Msg("List matches failed")
		}
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
	}

	r := service.NewReplayer(matchRepo, postgres.NewTurnRepo(db), cfg.Rules)
	diverged, err := run(ctx, r, ids, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}
	if diverged > 0 {
		os.Exit(1)
	}
}

// run replays each match and prints one line per divergence. It returns the
// number of matches with at least one divergence.
func run(ctx context.Context, r replayer, ids []string, w io.Writer) (int, error) {
	diverged := 0
	for _, id := range ids {
		divs, err := r.ReplayMatch(ctx, id)
		if err != nil {
			return diverged, fmt.Errorf("match %s: %w", id, err)
		}
		if len(divs) == 0 {
			fmt.Fprintf(w, "%s: ok\n", id)
			continue
		}
		diverged++
		for _, d := range divs {
			fmt.Fprintf(w, "%s: turn %d: %s\n", id, d.Turn, d.Reason)
		}
	}
	return diverged, nil
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
