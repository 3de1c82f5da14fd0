// Package oracle fetches and validates base asset prices and converts between
// base units and USD units.
package oracle

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/pkg/errors"
	"github.com/Aidin1998/stablecoin/pkg/metrics"
)

const (
	// MaximumAge is the oldest quote accepted by the ledger
	MaximumAge = 100 * time.Second
	// PriceFeedDecimalAdjustment lifts an 8-decimal feed price to the 9-decimal ledger scale
	PriceFeedDecimalAdjustment = 10
	// FeedExponent is the exponent the decimal adjustment is calibrated for
	FeedExponent int32 = -8
	// BaseUnitsPerWhole is the number of smallest base units per whole base asset
	BaseUnitsPerWhole = 1_000_000_000
	// LedgerDecimals is the decimal scale of USD and debt amounts
	LedgerDecimals = 9

	// SOLUSDFeedID is the Pyth SOL/USD price feed
	SOLUSDFeedID = "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"
)

// PriceUpdate is a raw price report from a feed
type PriceUpdate struct {
	FeedID      string
	Price       int64
	Conf        uint64
	Exponent    int32
	PublishTime time.Time
}

// PriceFeed is an external price source
type PriceFeed interface {
	GetPrice(ctx context.Context, feedID string) (*PriceUpdate, error)
}

// Quote is a validated price ready for conversions
type Quote struct {
	Price       uint64
	Exponent    int32
	PublishTime time.Time
}

var (
	adjustment = uint256.NewInt(PriceFeedDecimalAdjustment)
	unitsWhole = uint256.NewInt(BaseUnitsPerWhole)
)

func (q Quote) adjustedPrice() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(q.Price), adjustment)
}

// USDValue converts base units to 9-decimal USD units
func (q Quote) USDValue(baseUnits uint64) (uint64, error) {
	return mulDiv(uint256.NewInt(baseUnits), q.adjustedPrice(), unitsWhole)
}

// BaseUnitsFromUSD converts 9-decimal USD units to base units
func (q Quote) BaseUnitsFromUSD(usd uint64) (uint64, error) {
	price := q.adjustedPrice()
	if price.IsZero() {
		return 0, errors.ErrInvalidPrice.Explain("price is zero")
	}
	return mulDiv(uint256.NewInt(usd), unitsWhole, price)
}

func mulDiv(x, y, d *uint256.Int) (uint64, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow || !z.IsUint64() {
		return 0, errors.ErrArithmeticOverflow.Explain("conversion result exceeds 64 bits")
	}
	return z.Uint64(), nil
}

// Decimal returns the quote price as a decimal USD amount per whole base asset
func (q Quote) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(q.Price), q.Exponent)
}

// FormatUnits renders a 9-decimal amount as a decimal string
func FormatUnits(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -LedgerDecimals).StringFixed(LedgerDecimals)
}

// Client validates quotes from a feed for one fixed feed id
type Client struct {
	feed   PriceFeed
	feedID string
	maxAge time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithClock overrides the clock used for staleness checks
func WithClock(clock func() time.Time) Option {
	return func(c *Client) { c.clock = clock }
}

// WithMaxAge overrides MaximumAge
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *Client) { c.maxAge = maxAge }
}

// NewClient creates an oracle client for feedID
func NewClient(feed PriceFeed, feedID string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		feed:   feed,
		feedID: feedID,
		maxAge: MaximumAge,
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote fetches a fresh price and validates it
func (c *Client) Quote(ctx context.Context) (*Quote, error) {
	update, err := c.feed.GetPrice(ctx, c.feedID)
	if err != nil {
		return nil, err
	}

	if normalizeFeedID(update.FeedID) != normalizeFeedID(c.feedID) {
		metrics.OracleRejections.WithLabelValues("feed_mismatch").Inc()
		return nil, errors.ErrInvalidPrice.Explain("feed %s returned for %s", update.FeedID, c.feedID)
	}
	if update.Price <= 0 {
		metrics.OracleRejections.WithLabelValues("non_positive").Inc()
		return nil, errors.ErrInvalidPrice.Explain("price %d is not positive", update.Price)
	}
	if update.Exponent != FeedExponent {
		metrics.OracleRejections.WithLabelValues("exponent").Inc()
		return nil, errors.ErrInvalidPrice.Explain("unexpected exponent %d", update.Exponent)
	}
	if age := c.clock().Sub(update.PublishTime); age > c.maxAge {
		metrics.OracleRejections.WithLabelValues("stale").Inc()
		return nil, errors.ErrStalePrice.Explain("quote is %s old, maximum is %s", age.Truncate(time.Second), c.maxAge)
	}

	return &Quote{
		Price:       uint64(update.Price),
		Exponent:    update.Exponent,
		PublishTime: update.PublishTime,
	}, nil
}

// USDValue converts base units to USD units using a fresh quote
func (c *Client) USDValue(ctx context.Context, baseUnits uint64) (uint64, error) {
	quote, err := c.Quote(ctx)
	if err != nil {
		return 0, err
	}
	usd, err := quote.USDValue(baseUnits)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("Converted base units to USD",
		zap.String("price", quote.Decimal().String()),
		zap.String("base", FormatUnits(baseUnits)),
		zap.String("usd", FormatUnits(usd)))
	return usd, nil
}

// BaseUnitsFromUSD converts USD units to base units using a fresh quote
func (c *Client) BaseUnitsFromUSD(ctx context.Context, usd uint64) (uint64, error) {
	quote, err := c.Quote(ctx)
	if err != nil {
		return 0, err
	}
	base, err := quote.BaseUnitsFromUSD(usd)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("Converted USD to base units",
		zap.String("price", quote.Decimal().String()),
		zap.String("usd", FormatUnits(usd)),
		zap.String("base", FormatUnits(base)))
	return base, nil
}

func normalizeFeedID(id string) string {
	return strings.TrimPrefix(strings.ToLower(id), "0x")
}
