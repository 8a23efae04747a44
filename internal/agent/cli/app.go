// Package cli is the interactive front of the agent: login, record CRUD,
// trash management and manual sync, with the background sync loop running
// underneath.
package cli

import (
	"bufio"
	"context"
	"errors"
	"os"

	_ "modernc.org/sqlite"

	"github.com/hyoshida/estatesync/internal/agent/cleanup"
	"github.com/hyoshida/estatesync/internal/agent/config"
	"github.com/hyoshida/estatesync/internal/agent/store"
	"github.com/hyoshida/estatesync/internal/agent/syncer"
	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/filex"
	"github.com/hyoshida/estatesync/internal/logging"
)

type App struct {
	config  *config.Config
	store   *store.Store
	cleanup *cleanup.Service
	syncer  *syncer.Service
	logger  logging.Logger
	reader  *bufio.Reader

	staffID string
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.NewText(os.Stderr)

	dbPath, err := filex.ResolveDataPath(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}

	cl := cleanup.NewService(st, logger)
	transport := syncer.NewHTTPTransport(cfg.ServerURL)
	sv := syncer.NewService(st, cl, transport, logger, syncer.Options{
		Interval:      cfg.SyncInterval,
		RetentionDays: cfg.RetentionDays,
	})

	return &App{
		config:  cfg,
		store:   st,
		cleanup: cl,
		syncer:  sv,
		logger:  logger,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.syncer.Authenticated()
}

// Run drives the interactive session: login, background sync, REPL.
func (a *App) Run(ctx context.Context) {
	defer a.store.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_ = a.Login(ctx)

	go func() {
		err := a.syncer.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, common.ErrSessionExpired) {
			a.logger.Error(ctx, "background sync stopped", "error", err)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) status() string {
	if a.staffID != "" {
		return a.staffID + "@" + a.config.StoreID
	}
	return "offline"
}
