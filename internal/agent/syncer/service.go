package syncer

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"

	"github.com/hyoshida/estatesync/internal/agent/cleanup"
	"github.com/hyoshida/estatesync/internal/agent/store"
	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/logging"
	"github.com/hyoshida/estatesync/internal/model"
	"github.com/hyoshida/estatesync/internal/syncapi"
)

const (
	// nightlySpec runs the full maintenance pass at 03:00 local time,
	// when nobody is editing.
	nightlySpec = "0 3 * * *"

	pushAttempts = 3
)

// Session identifies an authenticated staff member at one store. The token
// is held in memory only; a restart requires a fresh login.
type Session struct {
	Token   string
	StoreID string
	StaffID string
}

// Service owns the agent side of synchronization: it pushes the local
// snapshot, pulls and reconciles the remote one, and answers "did someone
// else change anything". One Service per open store.
type Service struct {
	store     *store.Store
	cleanup   *cleanup.Service
	transport Transport
	logger    logging.Logger

	interval      time.Duration
	retentionDays int

	mu      stdsync.Mutex
	session Session

	now func() time.Time
}

// Options tune the periodic behaviour of the service.
type Options struct {
	// Interval between background sync passes. Zero disables the ticker
	// (the nightly job still runs).
	Interval time.Duration
	// RetentionDays is how long synced tombstones are kept before the
	// post-push cleanup removes them.
	RetentionDays int
}

func NewService(st *store.Store, cl *cleanup.Service, tr Transport, logger logging.Logger, opts Options) *Service {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 7
	}
	return &Service{
		store:         st,
		cleanup:       cl,
		transport:     tr,
		logger:        logger,
		interval:      opts.Interval,
		retentionDays: opts.RetentionDays,
		now:           time.Now,
	}
}

// Login authenticates against the remote authority and opens a session.
// Local data is left untouched on failure.
func (s *Service) Login(ctx context.Context, storeID, staffID, password string) error {
	resp, err := s.transport.Login(ctx, syncapi.LoginRequest{
		StoreID:  storeID,
		StaffID:  staffID,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	s.mu.Lock()
	s.session = Session{Token: resp.Token, StoreID: storeID, StaffID: staffID}
	s.mu.Unlock()
	s.store.SetActor(staffID)
	s.logger.Info(ctx, "logged in", "storeId", storeID, "staffId", staffID)
	return nil
}

// StartSession installs an already-issued token, e.g. one restored by the
// caller from its own keychain.
func (s *Service) StartSession(sess Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	s.store.SetActor(sess.StaffID)
}

// EndSession forgets the token and the acting staff member. Local records
// stay on disk; only the credential state is dropped.
func (s *Service) EndSession() {
	s.mu.Lock()
	s.session = Session{}
	s.mu.Unlock()
	s.store.SetActor("")
}

// Authenticated reports whether a session token is present.
func (s *Service) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Token != ""
}

func (s *Service) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Token
}

// handleAuthErr converts a rejected token into a session-expired condition:
// the session is cleared so the next attempt prompts a fresh login, and the
// sync failure is recorded. Unsynced local edits are preserved.
func (s *Service) handleAuthErr(ctx context.Context, err error) error {
	if !errors.Is(err, common.ErrUnauthorized) && !errors.Is(err, common.ErrTokenExpired) {
		return err
	}
	s.EndSession()
	if serr := s.store.SetLastSync(ctx, s.now(), false); serr != nil {
		s.logger.Warn(ctx, "failed to record sync failure", "error", serr)
	}
	s.logger.Warn(ctx, "session rejected by server, login required again")
	return common.ErrSessionExpired
}

// Push uploads the full local snapshot, tombstones included, so the server
// can merge and arbitrate deletions. Transient endpoint failures are
// retried with a short backoff; an auth failure ends the session. After a
// successful push the retention cleanup runs, since everything just
// uploaded is now safely synced.
func (s *Service) Push(ctx context.Context) error {
	token := s.token()
	if token == "" {
		return common.ErrUnauthorized
	}

	snap, err := s.store.Export(ctx)
	if err != nil {
		return err
	}

	var resp *syncapi.SaveResponse
	backoff := retry.WithMaxRetries(pushAttempts-1, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err = s.transport.Save(ctx, token, snap)
		if errors.Is(err, common.ErrUnavailable) {
			s.logger.Warn(ctx, "sync endpoint unavailable, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if aerr := s.handleAuthErr(ctx, err); errors.Is(aerr, common.ErrSessionExpired) {
			return aerr
		}
		if serr := s.store.SetLastSync(ctx, s.now(), false); serr != nil {
			s.logger.Warn(ctx, "failed to record sync failure", "error", serr)
		}
		return fmt.Errorf("push failed: %w", err)
	}

	if err := s.store.SetLastSync(ctx, s.now(), true); err != nil {
		return err
	}
	s.logger.Info(ctx, "pushed snapshot", "version", resp.Version)

	if removed, err := s.cleanup.CleanupSynced(ctx, s.retentionDays); err != nil {
		s.logger.Warn(ctx, "post-push cleanup failed", "error", err)
	} else if removed > 0 {
		s.logger.Info(ctx, "post-push cleanup removed synced tombstones", "count", removed)
	}
	return nil
}

// Pull downloads the server snapshot and reconciles it into the local
// store. A server that has no data for this store answers with a null
// snapshot; that is a no-op, never a wipe. Returns the snapshot that was
// applied, or nil when there was nothing to apply.
func (s *Service) Pull(ctx context.Context) (*model.Snapshot, error) {
	token := s.token()
	if token == "" {
		return nil, common.ErrUnauthorized
	}

	resp, err := s.transport.Load(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrMalformedPayload) {
			s.logger.Warn(ctx, "server returned unusable payload, keeping local data", "error", err)
			return nil, nil
		}
		return nil, s.handleAuthErr(ctx, err)
	}
	if resp.Data == nil || resp.Data.IsEmpty() {
		s.logger.Info(ctx, "no remote data for this store")
		return nil, nil
	}

	if err := s.store.Import(ctx, resp.Data); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "pulled snapshot", "lastUpdated", resp.LastUpdated)
	return resp.Data, nil
}

// CheckForUpdates asks whether the server snapshot changed since our last
// successful sync. Changes made by this very session are not updates.
func (s *Service) CheckForUpdates(ctx context.Context) (bool, error) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess.Token == "" {
		return false, common.ErrUnauthorized
	}

	lastSync, err := s.store.LastSyncTime(ctx)
	if err != nil {
		return false, err
	}

	resp, err := s.transport.Check(ctx, sess.Token, lastSync)
	if err != nil {
		return false, s.handleAuthErr(ctx, err)
	}
	if resp.HasUpdate && resp.UpdatedBy == sess.StaffID {
		return false, nil
	}
	return resp.HasUpdate, nil
}

// SyncNow runs one complete pass: push local changes, then check whether a
// colleague's changes are waiting and pull them in.
func (s *Service) SyncNow(ctx context.Context) error {
	if err := s.Push(ctx); err != nil {
		return err
	}
	hasUpdate, err := s.CheckForUpdates(ctx)
	if err != nil {
		return err
	}
	if hasUpdate {
		if _, err := s.Pull(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run drives the background schedule until ctx is cancelled: a sync pass
// every interval, plus a nightly full pass with retention cleanup. A lost
// session stops the loop; everything else is logged and retried on the
// next tick.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(nightlySpec, func() {
		s.logger.Info(ctx, "nightly sync starting")
		if err := s.SyncNow(ctx); err != nil {
			s.logger.Error(ctx, "nightly sync failed", "error", err)
			return
		}
		if removed, err := s.cleanup.CleanupSynced(ctx, s.retentionDays); err != nil {
			s.logger.Warn(ctx, "nightly cleanup failed", "error", err)
		} else {
			s.logger.Info(ctx, "nightly sync complete", "cleaned", removed)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SyncNow(ctx); err != nil {
				if errors.Is(err, common.ErrSessionExpired) {
					return err
				}
				s.logger.Warn(ctx, "background sync failed", "error", err)
			}
		}
	}
}
