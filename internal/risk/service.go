// Package risk computes position health factors and enforces the solvency invariant
package risk

import (
	"context"
	"math"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/pkg/errors"
	"github.com/Aidin1998/stablecoin/pkg/models"
)

// MaxHealthFactor is reported for positions without debt
const MaxHealthFactor = math.MaxUint64

// Valuer converts base units to USD units at the current price
type Valuer interface {
	USDValue(ctx context.Context, baseUnits uint64) (uint64, error)
}

// Engine evaluates positions against protocol parameters
type Engine struct {
	oracle Valuer
	logger *zap.Logger
}

// NewEngine creates a risk engine priced by oracle
func NewEngine(oracle Valuer, logger *zap.Logger) *Engine {
	return &Engine{oracle: oracle, logger: logger}
}

// MaxMintable returns collateralUSD * threshold / 100, floored
func MaxMintable(collateralUSD, threshold uint64) (uint64, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(
		uint256.NewInt(collateralUSD), uint256.NewInt(threshold), uint256.NewInt(100))
	if overflow || !z.IsUint64() {
		return 0, errors.ErrArithmeticOverflow.Explain("max mintable exceeds 64 bits")
	}
	return z.Uint64(), nil
}

// HealthFactorOf returns maxMintable / amountMinted, or MaxHealthFactor without debt
func HealthFactorOf(maxMintable, amountMinted uint64) uint64 {
	if amountMinted == 0 {
		return MaxHealthFactor
	}
	return maxMintable / amountMinted
}

func (e *Engine) maxMintable(ctx context.Context, position *models.CollateralPosition, cfg *models.ProtocolConfig) (uint64, error) {
	collateralUSD, err := e.oracle.USDValue(ctx, position.CollateralValue)
	if err != nil {
		return 0, err
	}
	return MaxMintable(collateralUSD, cfg.LiquidationThreshold)
}

// HealthFactor computes the health factor of position under cfg
func (e *Engine) HealthFactor(ctx context.Context, position *models.CollateralPosition, cfg *models.ProtocolConfig) (uint64, error) {
	maxMintable, err := e.maxMintable(ctx, position, cfg)
	if err != nil {
		return 0, err
	}
	return HealthFactorOf(maxMintable, position.AmountMinted), nil
}

// Check fails with HealthFactorTooLow when position is below cfg.MinHealthFactor.
// The computed health factor is returned either way.
func (e *Engine) Check(ctx context.Context, position *models.CollateralPosition, cfg *models.ProtocolConfig) (uint64, error) {
	hf, err := e.HealthFactor(ctx, position, cfg)
	if err != nil {
		return 0, err
	}
	if hf < cfg.MinHealthFactor {
		e.logger.Info("Health factor below minimum",
			zap.String("owner", position.Owner),
			zap.Uint64("health_factor", hf),
			zap.Uint64("min_health_factor", cfg.MinHealthFactor),
			zap.Uint64("collateral_value", position.CollateralValue),
			zap.Uint64("amount_minted", position.AmountMinted))
		return hf, errors.ErrHealthFactorTooLow.Explain("health factor %d is below minimum %d", hf, cfg.MinHealthFactor)
	}
	return hf, nil
}

// MintCapacity returns how much more debt position can take while staying at
// or above cfg.MinHealthFactor
func (e *Engine) MintCapacity(ctx context.Context, position *models.CollateralPosition, cfg *models.ProtocolConfig) (uint64, error) {
	maxMintable, err := e.maxMintable(ctx, position, cfg)
	if err != nil {
		return 0, err
	}
	limit := uint64(MaxHealthFactor)
	if cfg.MinHealthFactor > 0 {
		limit = maxMintable / cfg.MinHealthFactor
	}
	if limit <= position.AmountMinted {
		return 0, nil
	}
	return limit - position.AmountMinted, nil
}
