package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/logging"
	"github.com/hyoshida/estatesync/internal/server/auth"
	"github.com/hyoshida/estatesync/internal/server/config"
	"github.com/hyoshida/estatesync/internal/server/models"
	"github.com/hyoshida/estatesync/internal/server/repositories/repomanager"
)

// StaffService authenticates staff members and serves the store roster.
type StaffService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	logger        logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration
}

func NewStaffService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *StaffService {
	return &StaffService{
		db:            db,
		repomanager:   m,
		logger:        logger.With("module", "staff"),
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.TokenValidityDuration,
	}
}

// Login verifies the password against the stored bcrypt hash and mints a
// bearer token scoped to the store. Unknown staff, wrong passwords and
// deactivated accounts all come back as common.ErrUnauthorized so the
// response does not leak which of the three it was.
func (s *StaffService) Login(ctx context.Context, storeID, staffID, password string) (string, *models.Staff, error) {
	repo := s.repomanager.Staff(s.db)

	member, err := repo.Get(ctx, storeID, staffID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", nil, common.ErrUnauthorized
		}
		return "", nil, fmt.Errorf("error loading staff record: %w", err)
	}

	if !member.Active {
		return "", nil, common.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return "", nil, common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(storeID, staffID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return "", nil, fmt.Errorf("error generating token: %w", err)
	}

	s.logger.Info(ctx, "staff logged in", "storeId", storeID, "staffId", staffID)
	return token, member, nil
}

// Register creates a staff login with a bcrypt-hashed password.
func (s *StaffService) Register(ctx context.Context, storeID, staffID, name, role, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	repo := s.repomanager.Staff(s.db)
	return repo.Create(ctx, &models.Staff{
		StoreID:      storeID,
		StaffID:      staffID,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
		Active:       true,
	})
}

// ListActive returns the active roster of a store.
func (s *StaffService) ListActive(ctx context.Context, storeID string) ([]models.Staff, error) {
	repo := s.repomanager.Staff(s.db)
	return repo.ListActive(ctx, storeID)
}
