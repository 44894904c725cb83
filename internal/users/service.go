// Package users manages the mapping from external identities to the
// premium flag. The backing table may not exist yet in fresh deployments;
// reads degrade to the non-premium default instead of erroring.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSchemaNotReady indicates the users table has not been created yet.
var ErrSchemaNotReady = errors.New("users: schema not ready")

// ServiceConfig describes the dependencies of the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service reads and writes user rows.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger

	schemaOnce  sync.Once
	schemaReady bool
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// tableReady asks the store's schema introspection whether the users
// table exists, once per process. The answer is detected structurally
// rather than by matching driver error strings.
func (s *Service) tableReady() bool {
	s.schemaOnce.Do(func() {
		s.schemaReady = s.db.Migrator().HasTable(&User{})
	})
	return s.schemaReady
}

// Ensure upserts the user row, ignoring an existing one, and returns it.
func (s *Service) Ensure(ctx context.Context, externalID string) (User, error) {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return User{}, fmt.Errorf("users: external id required")
	}
	if !s.tableReady() {
		s.logger.Warn("users table not found; returning non-premium default",
			zap.String("code", "users.ensure.schema_not_ready"),
			zap.String("external_id", id))
		return User{ExternalID: id, IsPremium: false}, nil
	}

	user := User{ExternalID: id}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&user).Error
	if err != nil {
		return User{}, err
	}

	var persisted User
	if err := s.db.WithContext(ctx).Where("external_id = ?", id).Take(&persisted).Error; err != nil {
		return User{}, err
	}
	return persisted, nil
}

// IsPremium reports the user's premium flag. A missing row or a missing
// table both mean non-premium.
func (s *Service) IsPremium(ctx context.Context, externalID string) (bool, error) {
	if !s.tableReady() {
		s.logger.Warn("users table not found; treating as non-premium",
			zap.String("code", "users.premium.schema_not_ready"),
			zap.String("external_id", externalID))
		return false, nil
	}

	var user User
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsPremium, nil
}

// SetPremium upserts the user row with the premium flag enabled. Used by
// the billing webhook when a purchase carries a reference id.
func (s *Service) SetPremium(ctx context.Context, externalID string) error {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return fmt.Errorf("users: external id required")
	}
	if !s.tableReady() {
		return ErrSchemaNotReady
	}

	user := User{ExternalID: id, IsPremium: true}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"is_premium": true, "updated_at": s.now().UTC()}),
		}).
		Create(&user).Error
}
