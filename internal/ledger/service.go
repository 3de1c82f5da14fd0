// Package ledger keeps per-owner collateral positions and orchestrates
// deposit-and-mint and redeem-and-burn against the risk engine and the
// custody and issuance collaborators.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aidin1998/stablecoin/internal/custody"
	"github.com/Aidin1998/stablecoin/internal/issuance"
	"github.com/Aidin1998/stablecoin/internal/locks"
	"github.com/Aidin1998/stablecoin/pkg/errors"
	"github.com/Aidin1998/stablecoin/pkg/metrics"
	"github.com/Aidin1998/stablecoin/pkg/models"
)

const (
	opDepositAndMint = "deposit_and_mint"
	opRedeemAndBurn  = "redeem_and_burn"

	publishTimeout = 5 * time.Second
)

// ConfigStore reads the protocol config
type ConfigStore interface {
	Get(ctx context.Context) (*models.ProtocolConfig, error)
	Load(tx *gorm.DB) (*models.ProtocolConfig, error)
}

// RiskChecker evaluates positions against the protocol config
type RiskChecker interface {
	Check(ctx context.Context, position *models.CollateralPosition, cfg *models.ProtocolConfig) (uint64, error)
	HealthFactor(ctx context.Context, position *models.CollateralPosition, cfg *models.ProtocolConfig) (uint64, error)
	MintCapacity(ctx context.Context, position *models.CollateralPosition, cfg *models.ProtocolConfig) (uint64, error)
}

// EventSink receives committed position changes
type EventSink interface {
	PublishPositionEvent(ctx context.Context, event *models.PositionEvent) error
}

// Result is the committed state of a position operation
type Result struct {
	Position     *models.CollateralPosition `json:"position"`
	HealthFactor uint64                     `json:"health_factor"`
}

// Health describes a position's standing under the current price
type Health struct {
	Position        *models.CollateralPosition `json:"position"`
	HealthFactor    uint64                     `json:"health_factor"`
	MinHealthFactor uint64                     `json:"min_health_factor"`
	MintCapacity    uint64                     `json:"mint_capacity"`
}

// Service implements the position ledger
type Service struct {
	logger   *zap.Logger
	db       *gorm.DB
	registry ConfigStore
	risk     RiskChecker
	vault    custody.Vault
	issuer   issuance.Gateway
	locker   locks.Locker
	events   EventSink
}

// Option configures a Service
type Option func(*Service)

// WithEvents publishes committed changes to sink
func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// NewService creates a position ledger
func NewService(
	logger *zap.Logger,
	db *gorm.DB,
	registry ConfigStore,
	risk RiskChecker,
	vault custody.Vault,
	issuer issuance.Gateway,
	locker locks.Locker,
	opts ...Option,
) *Service {
	s := &Service{
		logger:   logger,
		db:       db,
		registry: registry,
		risk:     risk,
		vault:    vault,
		issuer:   issuer,
		locker:   locker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenPosition returns owner's position inside tx, creating a zeroed
// initialized one if none exists. The row is locked for the rest of tx where
// the database supports it.
func (s *Service) OpenPosition(ctx context.Context, tx *gorm.DB, owner string) (*models.CollateralPosition, bool, error) {
	position, err := s.findPosition(tx, owner)
	if err == nil {
		return position, false, nil
	}
	if !errors.Is(err, errors.ErrPositionNotFound) {
		return nil, false, err
	}

	now := time.Now()
	position = &models.CollateralPosition{
		ID:             uuid.New(),
		Owner:          owner,
		IsInitialized:  true,
		CustodyAccount: DeriveAccount(CustodySeed, owner),
		TokenAccount:   DeriveAccount(TokenSeed, owner),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoNothing: true,
	}).Create(position)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create position: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// created concurrently by another instance
		position, err = s.findPosition(tx, owner)
		return position, false, err
	}

	s.logger.Info("Opened collateral position",
		zap.String("owner", owner),
		zap.String("custody_account", position.CustodyAccount),
		zap.String("token_account", position.TokenAccount))
	return position, true, nil
}

func (s *Service) findPosition(tx *gorm.DB, owner string) (*models.CollateralPosition, error) {
	var position models.CollateralPosition
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("owner = ?", owner).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPositionNotFound.Explain("no position for %s", owner)
		}
		return nil, fmt.Errorf("failed to load position: %w", err)
	}
	return &position, nil
}

// save writes the position if nobody changed it since it was read
func (s *Service) save(tx *gorm.DB, position *models.CollateralPosition) error {
	now := time.Now()
	result := tx.Model(&models.CollateralPosition{}).
		Where("id = ? AND version = ?", position.ID, position.Version).
		Updates(map[string]interface{}{
			"collateral_value": position.CollateralValue,
			"amount_minted":    position.AmountMinted,
			"version":          position.Version + 1,
			"updated_at":       now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save position: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrConcurrencyConflict.Explain("position of %s changed concurrently", position.Owner)
	}
	position.Version++
	position.UpdatedAt = now
	return nil
}

// DepositAndMint moves collateralDelta into custody and mints mintDelta to
// owner, provided the resulting position stays healthy
func (s *Service) DepositAndMint(ctx context.Context, owner string, collateralDelta, mintDelta uint64) (*Result, error) {
	start := time.Now()
	result, err := s.withOwnerLock(ctx, owner, func(ctx context.Context) (*Result, error) {
		return s.depositAndMint(ctx, owner, collateralDelta, mintDelta)
	})
	s.observe(opDepositAndMint, start, result, err)
	if err != nil {
		s.logger.Info("Deposit and mint rejected",
			zap.String("owner", owner),
			zap.Uint64("collateral_delta", collateralDelta),
			zap.Uint64("mint_delta", mintDelta),
			zap.Error(err))
	}
	return result, err
}

func (s *Service) depositAndMint(ctx context.Context, owner string, collateralDelta, mintDelta uint64) (*Result, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	cfg, err := s.registry.Load(tx)
	if err != nil {
		return nil, err
	}
	position, _, err := s.OpenPosition(ctx, tx, owner)
	if err != nil {
		return nil, err
	}
	observed, err := s.vault.Balance(ctx, owner)
	if err != nil {
		return nil, collaboratorError("custody", "balance", err)
	}

	tentative := *position
	var ok bool
	if tentative.CollateralValue, ok = addUint64(observed, collateralDelta); !ok {
		return nil, errors.ErrArithmeticOverflow.Explain("collateral %d + %d overflows", observed, collateralDelta)
	}
	if tentative.AmountMinted, ok = addUint64(position.AmountMinted, mintDelta); !ok {
		return nil, errors.ErrArithmeticOverflow.Explain("debt %d + %d overflows", position.AmountMinted, mintDelta)
	}

	hf, err := s.risk.Check(ctx, &tentative, cfg)
	if err != nil {
		return nil, err
	}

	comp := &compensator{owner: owner, logger: s.logger}
	if collateralDelta > 0 {
		if err := s.vault.Deposit(ctx, owner, collateralDelta); err != nil {
			return nil, collaboratorError("custody", "deposit", err)
		}
		comp.push("custody", "deposit", func(ctx context.Context) error {
			return s.vault.Withdraw(ctx, owner, collateralDelta)
		})
	}
	if mintDelta > 0 {
		if err := s.issuer.Mint(ctx, owner, mintDelta); err != nil {
			return nil, comp.run(ctx, collaboratorError("issuance", "mint", err))
		}
		comp.push("issuance", "mint", func(ctx context.Context) error {
			return s.issuer.Burn(ctx, owner, mintDelta)
		})
	}

	if err := s.save(tx, &tentative); err != nil {
		return nil, comp.run(ctx, err)
	}
	if err := tx.Commit().Error; err != nil {
		committed = true
		return nil, comp.run(ctx, fmt.Errorf("failed to commit position: %w", err))
	}
	committed = true

	s.logger.Info("Deposited collateral and minted",
		zap.String("owner", owner),
		zap.Uint64("collateral_delta", collateralDelta),
		zap.Uint64("mint_delta", mintDelta),
		zap.Uint64("collateral_value", tentative.CollateralValue),
		zap.Uint64("amount_minted", tentative.AmountMinted),
		zap.Uint64("health_factor", hf))

	s.publish(ctx, models.EventDepositAndMint, &tentative, collateralDelta, mintDelta, hf)
	return &Result{Position: &tentative, HealthFactor: hf}, nil
}

// RedeemAndBurn burns burnDelta from owner and returns collateralDelta from
// custody, provided the resulting position stays healthy
func (s *Service) RedeemAndBurn(ctx context.Context, owner string, collateralDelta, burnDelta uint64) (*Result, error) {
	start := time.Now()
	result, err := s.withOwnerLock(ctx, owner, func(ctx context.Context) (*Result, error) {
		return s.redeemAndBurn(ctx, owner, collateralDelta, burnDelta)
	})
	s.observe(opRedeemAndBurn, start, result, err)
	if err != nil {
		s.logger.Info("Redeem and burn rejected",
			zap.String("owner", owner),
			zap.Uint64("collateral_delta", collateralDelta),
			zap.Uint64("burn_delta", burnDelta),
			zap.Error(err))
	}
	return result, err
}

func (s *Service) redeemAndBurn(ctx context.Context, owner string, collateralDelta, burnDelta uint64) (*Result, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	cfg, err := s.registry.Load(tx)
	if err != nil {
		return nil, err
	}
	position, err := s.findPosition(tx, owner)
	if err != nil {
		return nil, err
	}
	observed, err := s.vault.Balance(ctx, owner)
	if err != nil {
		return nil, collaboratorError("custody", "balance", err)
	}

	if collateralDelta > observed {
		return nil, errors.ErrArithmeticUnderflow.Explain("cannot redeem %d of %d collateral", collateralDelta, observed)
	}
	if burnDelta > position.AmountMinted {
		return nil, errors.ErrArithmeticUnderflow.Explain("cannot burn %d of %d debt", burnDelta, position.AmountMinted)
	}
	tentative := *position
	tentative.CollateralValue = observed - collateralDelta
	tentative.AmountMinted = position.AmountMinted - burnDelta

	hf, err := s.risk.Check(ctx, &tentative, cfg)
	if err != nil {
		return nil, err
	}

	comp := &compensator{owner: owner, logger: s.logger}
	if burnDelta > 0 {
		if err := s.issuer.Burn(ctx, owner, burnDelta); err != nil {
			return nil, collaboratorError("issuance", "burn", err)
		}
		comp.push("issuance", "burn", func(ctx context.Context) error {
			return s.issuer.Mint(ctx, owner, burnDelta)
		})
	}
	if collateralDelta > 0 {
		if err := s.vault.Withdraw(ctx, owner, collateralDelta); err != nil {
			return nil, comp.run(ctx, collaboratorError("custody", "withdraw", err))
		}
		comp.push("custody", "withdraw", func(ctx context.Context) error {
			return s.vault.Deposit(ctx, owner, collateralDelta)
		})
	}

	if err := s.save(tx, &tentative); err != nil {
		return nil, comp.run(ctx, err)
	}
	if err := tx.Commit().Error; err != nil {
		committed = true
		return nil, comp.run(ctx, fmt.Errorf("failed to commit position: %w", err))
	}
	committed = true

	s.logger.Info("Redeemed collateral and burned",
		zap.String("owner", owner),
		zap.Uint64("collateral_delta", collateralDelta),
		zap.Uint64("burn_delta", burnDelta),
		zap.Uint64("collateral_value", tentative.CollateralValue),
		zap.Uint64("amount_minted", tentative.AmountMinted),
		zap.Uint64("health_factor", hf))

	s.publish(ctx, models.EventRedeemAndBurn, &tentative, collateralDelta, burnDelta, hf)
	return &Result{Position: &tentative, HealthFactor: hf}, nil
}

// Position returns owner's committed position
func (s *Service) Position(ctx context.Context, owner string) (*models.CollateralPosition, error) {
	var position models.CollateralPosition
	err := s.db.WithContext(ctx).Where("owner = ?", owner).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPositionNotFound.Explain("no position for %s", owner)
		}
		return nil, fmt.Errorf("failed to load position: %w", err)
	}
	return &position, nil
}

// HealthFactor evaluates owner's committed position at the current price
func (s *Service) HealthFactor(ctx context.Context, owner string) (*Health, error) {
	cfg, err := s.registry.Get(ctx)
	if err != nil {
		return nil, err
	}
	position, err := s.Position(ctx, owner)
	if err != nil {
		return nil, err
	}
	hf, err := s.risk.HealthFactor(ctx, position, cfg)
	if err != nil {
		return nil, err
	}
	capacity, err := s.risk.MintCapacity(ctx, position, cfg)
	if err != nil {
		return nil, err
	}
	return &Health{
		Position:        position,
		HealthFactor:    hf,
		MinHealthFactor: cfg.MinHealthFactor,
		MintCapacity:    capacity,
	}, nil
}

// withOwnerLock runs fn holding owner's exclusive lock
func (s *Service) withOwnerLock(ctx context.Context, owner string, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	release, err := s.locker.Acquire(ctx, owner)
	if err != nil {
		if errors.KindOf(err) != "" {
			return nil, err
		}
		return nil, errors.ErrConcurrencyConflict.Explain("failed to lock position of %s", owner).Wrap(err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Failed to release position lock", zap.String("owner", owner), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (s *Service) publish(ctx context.Context, eventType string, position *models.CollateralPosition, collateralDelta, debtDelta, hf uint64) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := &models.PositionEvent{
		ID:              uuid.New(),
		Type:            eventType,
		Owner:           position.Owner,
		CollateralDelta: collateralDelta,
		DebtDelta:       debtDelta,
		CollateralValue: position.CollateralValue,
		AmountMinted:    position.AmountMinted,
		HealthFactor:    hf,
		Timestamp:       time.Now(),
	}
	if err := s.events.PublishPositionEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish position event", zap.String("owner", position.Owner), zap.Error(err))
	}
}

func (s *Service) observe(op string, start time.Time, result *Result, err error) {
	metrics.PositionLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := errors.KindOf(err)
		if kind == "" {
			kind = "internal"
		}
		metrics.PositionOperations.WithLabelValues(op, kind).Inc()
		return
	}
	metrics.PositionOperations.WithLabelValues(op, "ok").Inc()
	metrics.HealthFactor.Observe(float64(result.HealthFactor))
}

func collaboratorError(collaborator, action string, err error) error {
	if errors.KindOf(err) != "" {
		return err
	}
	return errors.ErrCollaboratorFailure.Explain("%s %s failed", collaborator, action).Wrap(err)
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
