package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/stablecoin/api/responses"
	"github.com/Aidin1998/stablecoin/internal/ledger"
	"github.com/Aidin1998/stablecoin/internal/oracle"
	"github.com/Aidin1998/stablecoin/internal/risk"
	"github.com/Aidin1998/stablecoin/pkg/models"
)

// Amounts travel as decimal strings of base units so they survive JSON number precision
type depositRequest struct {
	CollateralAmount uint64 `json:"collateral_amount,string"`
	MintAmount       uint64 `json:"mint_amount,string"`
}

type redeemRequest struct {
	CollateralAmount uint64 `json:"collateral_amount,string"`
	BurnAmount       uint64 `json:"burn_amount,string"`
}

// Amount is a base-unit quantity with its whole-unit rendering
type Amount struct {
	Units   string `json:"units"`
	Display string `json:"display"`
}

func amountOf(v uint64) Amount {
	return Amount{Units: strconv.FormatUint(v, 10), Display: oracle.FormatUnits(v)}
}

// PositionView is the API rendering of a collateral position
type PositionView struct {
	Owner           string `json:"owner"`
	CollateralValue Amount `json:"collateral_value"`
	AmountMinted    Amount `json:"amount_minted"`
	CustodyAccount  string `json:"custody_account"`
	TokenAccount    string `json:"token_account"`
	UpdatedAt       string `json:"updated_at"`
}

func positionView(p *models.CollateralPosition) PositionView {
	return PositionView{
		Owner:           p.Owner,
		CollateralValue: amountOf(p.CollateralValue),
		AmountMinted:    amountOf(p.AmountMinted),
		CustodyAccount:  p.CustodyAccount,
		TokenAccount:    p.TokenAccount,
		UpdatedAt:       p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// HealthView reports a health factor; unbounded is set when no debt is outstanding
type HealthView struct {
	Position        PositionView `json:"position"`
	HealthFactor    string       `json:"health_factor"`
	Unbounded       bool         `json:"unbounded"`
	MinHealthFactor uint64       `json:"min_health_factor,omitempty"`
	MintCapacity    *Amount      `json:"mint_capacity,omitempty"`
}

func resultView(result *ledger.Result) HealthView {
	return HealthView{
		Position:     positionView(result.Position),
		HealthFactor: strconv.FormatUint(result.HealthFactor, 10),
		Unbounded:    result.HealthFactor == risk.MaxHealthFactor,
	}
}

func (s *Server) depositAndMint(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, "invalid deposit request: "+err.Error())
		return
	}
	result, err := s.ledger.DepositAndMint(c.Request.Context(), caller(c), req.CollateralAmount, req.MintAmount)
	if err != nil {
		s.fail(c, err)
		return
	}
	responses.Success(c, resultView(result), "Collateral deposited")
}

func (s *Server) redeemAndBurn(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, "invalid redeem request: "+err.Error())
		return
	}
	result, err := s.ledger.RedeemAndBurn(c.Request.Context(), caller(c), req.CollateralAmount, req.BurnAmount)
	if err != nil {
		s.fail(c, err)
		return
	}
	responses.Success(c, resultView(result), "Collateral redeemed")
}

func (s *Server) getPosition(c *gin.Context) {
	position, err := s.ledger.Position(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	responses.Success(c, positionView(position))
}

func (s *Server) getHealth(c *gin.Context) {
	health, err := s.ledger.HealthFactor(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	capacity := amountOf(health.MintCapacity)
	responses.Success(c, HealthView{
		Position:        positionView(health.Position),
		HealthFactor:    strconv.FormatUint(health.HealthFactor, 10),
		Unbounded:       health.HealthFactor == risk.MaxHealthFactor,
		MinHealthFactor: health.MinHealthFactor,
		MintCapacity:    &capacity,
	})
}
