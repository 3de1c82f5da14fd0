package models

import (
	"time"

	"github.com/google/uuid"
)

// ConfigID is the fixed primary key of the protocol config singleton
const ConfigID uint = 1

// ProtocolConfig holds the global protocol parameters
type ProtocolConfig struct {
	ID                   uint      `json:"-" gorm:"primaryKey;autoIncrement:false"`
	Authority            string    `json:"authority" gorm:"not null" validate:"required,max=128"`
	Mint                 string    `json:"mint" gorm:"not null" validate:"required,max=128"`
	LiquidationThreshold uint64    `json:"liquidation_threshold" validate:"max=100"`
	LiquidationBonus     uint64    `json:"liquidation_bonus" validate:"max=100"`
	MinHealthFactor      uint64    `json:"min_health_factor"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CollateralPosition represents one owner's collateral and outstanding debt
type CollateralPosition struct {
	ID              uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Owner           string    `json:"owner" gorm:"uniqueIndex;not null" validate:"required,max=128"`
	CollateralValue uint64    `json:"collateral_value"` // base asset smallest units
	AmountMinted    uint64    `json:"amount_minted"`    // debt token smallest units
	IsInitialized   bool      `json:"is_initialized"`
	CustodyAccount  string    `json:"custody_account" gorm:"not null"`
	TokenAccount    string    `json:"token_account" gorm:"not null"`
	Version         uint64    `json:"-" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PositionEvent is emitted after a committed position mutation
type PositionEvent struct {
	ID              uuid.UUID `json:"id"`
	Type            string    `json:"type"` // deposit_and_mint, redeem_and_burn
	Owner           string    `json:"owner"`
	CollateralDelta uint64    `json:"collateral_delta"`
	DebtDelta       uint64    `json:"debt_delta"`
	CollateralValue uint64    `json:"collateral_value"`
	AmountMinted    uint64    `json:"amount_minted"`
	HealthFactor    uint64    `json:"health_factor"`
	Timestamp       time.Time `json:"timestamp"`
}

// Position event types
const (
	EventDepositAndMint = "deposit_and_mint"
	EventRedeemAndBurn  = "redeem_and_burn"
)
