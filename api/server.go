package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/api/responses"
	"github.com/Aidin1998/stablecoin/internal/config"
	"github.com/Aidin1998/stablecoin/internal/credential"
	"github.com/Aidin1998/stablecoin/internal/ledger"
	"github.com/Aidin1998/stablecoin/pkg/models"
)

const (
	callerKey    = "caller"
	traceIDKey   = "trace_id"
	requestIDHdr = "X-Request-ID"
)

// Ledger is the position surface served by the API
type Ledger interface {
	DepositAndMint(ctx context.Context, owner string, collateralDelta, mintDelta uint64) (*ledger.Result, error)
	RedeemAndBurn(ctx context.Context, owner string, collateralDelta, burnDelta uint64) (*ledger.Result, error)
	Position(ctx context.Context, owner string) (*models.CollateralPosition, error)
	HealthFactor(ctx context.Context, owner string) (*ledger.Health, error)
}

// Registry is the config surface served by the API
type Registry interface {
	Initialize(ctx context.Context, authority string) (*models.ProtocolConfig, error)
	Update(ctx context.Context, caller string, minHealthFactor uint64) (*models.ProtocolConfig, error)
	Get(ctx context.Context) (*models.ProtocolConfig, error)
}

// TokenVerifier authenticates bearer tokens
type TokenVerifier interface {
	Verify(token, audience string) (*credential.TokenClaims, error)
}

// Server represents the API server
type Server struct {
	router    *gin.Engine
	http      *http.Server
	logger    *zap.Logger
	ledger    Ledger
	registry  Registry
	verifier  TokenVerifier
	validator *validator.Validate
}

// NewServer creates a new API server
func NewServer(
	logger *zap.Logger,
	cfg config.ServerConfig,
	ledger Ledger,
	registry Registry,
	verifier TokenVerifier,
) *Server {
	server := &Server{
		logger:    logger,
		ledger:    ledger,
		registry:  registry,
		verifier:  verifier,
		validator: validator.New(),
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("stablecoin-api"))
	router.Use(requestID())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHdr},
		ExposeHeaders: []string{"Content-Length", requestIDHdr},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	server.http = &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return server
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.registerDocs()

	protected := s.router.Group("/api/v1")
	protected.Use(s.authMiddleware())
	{
		cfg := protected.Group("/config")
		{
			cfg.POST("/initialize", s.initializeConfig)
			cfg.PUT("", s.updateConfig)
			cfg.GET("", s.getConfig)
		}

		positions := protected.Group("/positions")
		{
			positions.POST("/deposit", s.depositAndMint)
			positions.POST("/redeem", s.redeemAndBurn)
			positions.GET("/me", s.getPosition)
			positions.GET("/me/health", s.getHealth)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// authMiddleware authenticates the caller from a bearer JWT; the subject
// is the caller identity
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			responses.Unauthorized(c, "Authorization header required")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			responses.Unauthorized(c, "Invalid authorization format")
			return
		}

		claims, err := s.verifier.Verify(authHeader, "")
		if err != nil {
			s.logger.Debug("Rejected bearer token", zap.Error(err))
			responses.Unauthorized(c, "Invalid or expired token")
			return
		}
		if claims.Subject == "" {
			responses.Unauthorized(c, "Token has no subject")
			return
		}
		if claims.Scope == credential.ServiceScope {
			responses.Unauthorized(c, "Service tokens are not accepted")
			return
		}

		c.Set(callerKey, claims.Subject)
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHdr)
		if id == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				id = sc.TraceID().String()
			} else {
				id = uuid.NewString()
			}
		}
		c.Set(traceIDKey, id)
		c.Header(requestIDHdr, id)
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(callerKey)
}

// fail renders err as problem details, logging unexpected ones
func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Warn("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.String("caller", caller(c)),
		zap.Error(err))
	responses.Error(c, err)
}
