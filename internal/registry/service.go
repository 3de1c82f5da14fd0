// Package registry stores the singleton protocol configuration
package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aidin1998/stablecoin/pkg/errors"
	"github.com/Aidin1998/stablecoin/pkg/models"
)

// Protocol defaults recorded on initialization
const (
	LiquidationThreshold uint64 = 50
	LiquidationBonus     uint64 = 10
	MinHealthFactor      uint64 = 1
)

// Service manages the protocol config record
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	mint   string
}

// NewService creates a registry that records mint as the debt token on initialization
func NewService(logger *zap.Logger, db *gorm.DB, mint string) *Service {
	return &Service{logger: logger, db: db, mint: mint}
}

// Initialize creates the config with default parameters and authority recorded
func (s *Service) Initialize(ctx context.Context, authority string) (*models.ProtocolConfig, error) {
	now := time.Now()
	cfg := &models.ProtocolConfig{
		ID:                   models.ConfigID,
		Authority:            authority,
		Mint:                 s.mint,
		LiquidationThreshold: LiquidationThreshold,
		LiquidationBonus:     LiquidationBonus,
		MinHealthFactor:      MinHealthFactor,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cfg)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create config: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, errors.ErrAlreadyInitialized
	}

	s.logger.Info("Protocol config initialized",
		zap.String("authority", authority),
		zap.String("mint", s.mint),
		zap.Uint64("liquidation_threshold", cfg.LiquidationThreshold),
		zap.Uint64("min_health_factor", cfg.MinHealthFactor))
	return cfg, nil
}

// Update sets the minimum health factor; only the recorded authority may call it
func (s *Service) Update(ctx context.Context, caller string, minHealthFactor uint64) (*models.ProtocolConfig, error) {
	var cfg *models.ProtocolConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := load(tx.Clauses(clause.Locking{Strength: "UPDATE"}))
		if err != nil {
			return err
		}
		if current.Authority != caller {
			return errors.ErrUnauthorized
		}

		current.MinHealthFactor = minHealthFactor
		if err := tx.Model(current).Updates(map[string]interface{}{
			"min_health_factor": minHealthFactor,
			"updated_at":        time.Now(),
		}).Error; err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		cfg = current
		return nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			s.logger.Warn("Rejected config update from non-authority", zap.String("caller", caller))
		}
		return nil, err
	}

	s.logger.Info("Protocol config updated", zap.String("caller", caller), zap.Uint64("min_health_factor", minHealthFactor))
	return cfg, nil
}

// Get reads the current config
func (s *Service) Get(ctx context.Context) (*models.ProtocolConfig, error) {
	return load(s.db.WithContext(ctx))
}

// Load reads the config inside tx, giving the caller a snapshot consistent
// with the rest of its transaction
func (s *Service) Load(tx *gorm.DB) (*models.ProtocolConfig, error) {
	return load(tx)
}

func load(db *gorm.DB) (*models.ProtocolConfig, error) {
	var cfg models.ProtocolConfig
	if err := db.First(&cfg, models.ConfigID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrConfigNotInitialized
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
