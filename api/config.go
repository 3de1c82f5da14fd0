package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/stablecoin/api/responses"
	"github.com/Aidin1998/stablecoin/pkg/models"
)

type updateConfigRequest struct {
	MinHealthFactor *uint64 `json:"min_health_factor" validate:"required,min=1"`
}

// ConfigView is the API rendering of the protocol config
type ConfigView struct {
	Authority            string `json:"authority"`
	Mint                 string `json:"mint"`
	LiquidationThreshold uint64 `json:"liquidation_threshold"`
	LiquidationBonus     uint64 `json:"liquidation_bonus"`
	MinHealthFactor      uint64 `json:"min_health_factor"`
}

func configView(cfg *models.ProtocolConfig) ConfigView {
	return ConfigView{
		Authority:            cfg.Authority,
		Mint:                 cfg.Mint,
		LiquidationThreshold: cfg.LiquidationThreshold,
		LiquidationBonus:     cfg.LiquidationBonus,
		MinHealthFactor:      cfg.MinHealthFactor,
	}
}

// initializeConfig records the caller as the config authority
func (s *Server) initializeConfig(c *gin.Context) {
	cfg, err := s.registry.Initialize(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	responses.Created(c, configView(cfg), "Protocol config initialized")
}

func (s *Server) updateConfig(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, "invalid config update: "+err.Error())
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		responses.BadRequest(c, "invalid config update: "+err.Error())
		return
	}
	cfg, err := s.registry.Update(c.Request.Context(), caller(c), *req.MinHealthFactor)
	if err != nil {
		s.fail(c, err)
		return
	}
	responses.Success(c, configView(cfg), "Protocol config updated")
}

func (s *Server) getConfig(c *gin.Context) {
	cfg, err := s.registry.Get(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	responses.Success(c, configView(cfg))
}
