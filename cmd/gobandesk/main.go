package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/goban-desk/internal/config"
	"github.com/park285/goban-desk/internal/gamesession"
	"github.com/park285/goban-desk/internal/httpapi"
	"github.com/park285/goban-desk/internal/linesummary"
	"github.com/park285/goban-desk/internal/miniboard"
	"github.com/park285/goban-desk/internal/msgcat"
	"github.com/park285/goban-desk/internal/obslog"
	"github.com/park285/goban-desk/internal/realtime"
	"github.com/park285/goban-desk/internal/reports"
	"github.com/park285/goban-desk/internal/reportview"
	"github.com/park285/goban-desk/internal/requests"
	"github.com/park285/goban-desk/internal/roster"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := obslog.Init(obslog.OptionsFromEnv()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := obslog.L()
	defer func() { _ = log.Sync() }()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	policy, err := reportview.ParsePolicy(cfg.NoteSavePolicy)
	if err != nil {
		return err
	}

	headers := func() map[string]string {
		h := map[string]string{"X-User-Id": strconv.FormatInt(cfg.UserID, 10)}
		if cfg.AuthToken != "" {
			h["Authorization"] = "Bearer " + cfg.AuthToken
		}
		return h
	}

	client := requests.NewClient(cfg.APIBaseURL,
		requests.WithHeaderProvider(headers),
		requests.WithTimeout(cfg.APITimeout),
		requests.WithRetry(cfg.APIRetryMax),
	)

	socket := realtime.NewSocket(cfg.RealtimeURL, cfg.ReconnectAttempts, cfg.ReconnectDelay)
	socket.SetHeaderProvider(headers)
	cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
	err = socket.Connect(cctx)
	ccancel()
	if err != nil {
		return fmt.Errorf("connecting realtime: %w", err)
	}
	defer func() { _ = socket.Close(context.Background()) }()

	var journal reports.Journal = reports.NewMemoryJournal()
	if cfg.DatabaseURL != "" {
		pj, err := reports.OpenPostgresJournal(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer pj.Close()
		journal = pj
		log.Info("journal_postgres")
	}

	var store roster.Store = roster.NewMemoryStore(cfg.RosterTTL)
	if cfg.RedisURL != "" {
		rs, err := roster.NewRedisStoreFromURL(cfg.RedisURL, cfg.RosterTTL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		store = rs
		log.Info("roster_redis")
	}
	mods := roster.NewCache(client, roster.WithStore(store))

	sessions := gamesession.NewService(socket)
	// the desk acts with this account's credentials, so it only exists for moderators
	var desks *httpapi.Desks
	if cfg.IsModerator {
		desks = httpapi.NewDesks(func(moderatorID int64) reportview.Service {
			return reports.NewManager(client, socket, journal, moderatorID)
		}, journal,
			httpapi.WithDeskOwner(cfg.UserID),
			httpapi.WithDeskRoster(mods),
			httpapi.WithDeskCatalog(cat),
			httpapi.WithNotePolicy(policy, cfg.NoteSaveDelay),
		)
		defer desks.Close()
	} else {
		log.Info("report_desk_disabled", zap.Int64("user_id", cfg.UserID))
	}

	var sched linesummary.Scheduler = linesummary.FrameScheduler{}
	if !cfg.DeferSessionOpen {
		sched = linesummary.Immediate{}
	}
	if desks != nil && cfg.DeskJWTSecret == "" {
		log.Warn("desk_auth_disabled")
	}
	srv := httpapi.New(cfg.HTTPAddr, httpapi.NewRouter(httpapi.Deps{
		Sessions:   sessions,
		Board:      miniboard.NewRenderer(),
		Catalog:    cat,
		Desks:      desks,
		DeskSecret: []byte(cfg.DeskJWTSecret),
		Scheduler:  sched,
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_server_start", zap.String("addr", cfg.HTTPAddr))
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("http_server_shutdown")
		return srv.Shutdown(context.Background())
	})
	return g.Wait()
}
