package oracle

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/pkg/errors"
	"github.com/Aidin1998/stablecoin/pkg/metrics"
)

const latestPricePath = "/v2/updates/price/latest"

// HermesFeed reads parsed price updates from a Pyth Hermes endpoint
type HermesFeed struct {
	client *resty.Client
	logger *zap.Logger
}

type hermesPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type hermesResponse struct {
	Parsed []struct {
		ID    string      `json:"id"`
		Price hermesPrice `json:"price"`
	} `json:"parsed"`
}

// NewHermesFeed creates a feed bounded by timeout with retries on transport
// errors and 5xx responses
func NewHermesFeed(baseURL string, timeout time.Duration, retries int, logger *zap.Logger) *HermesFeed {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(50 * time.Millisecond).
		SetRetryMaxWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= 500)
		}).
		SetHeader("Accept", "application/json")

	return &HermesFeed{client: client, logger: logger}
}

// GetPrice implements PriceFeed
func (h *HermesFeed) GetPrice(ctx context.Context, feedID string) (*PriceUpdate, error) {
	start := time.Now()
	defer func() { metrics.OracleFetchLatency.Observe(time.Since(start).Seconds()) }()

	var out hermesResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("ids[]", feedID).
		SetQueryParam("parsed", "true").
		SetResult(&out).
		Get(latestPricePath)
	if err != nil {
		h.logger.Warn("Price feed request failed", zap.String("feed_id", feedID), zap.Error(err))
		return nil, errors.ErrCollaboratorFailure.Explain("price feed request failed").Wrap(err)
	}
	if resp.IsError() {
		h.logger.Warn("Price feed returned error status", zap.String("feed_id", feedID), zap.Int("status", resp.StatusCode()))
		return nil, errors.ErrCollaboratorFailure.Explain("price feed returned status %d", resp.StatusCode())
	}
	if len(out.Parsed) == 0 {
		return nil, errors.ErrInvalidPrice.Explain("no price returned for feed %s", feedID)
	}

	parsed := out.Parsed[0]
	price, err := strconv.ParseInt(parsed.Price.Price, 10, 64)
	if err != nil {
		return nil, errors.ErrInvalidPrice.Explain("malformed price %q", parsed.Price.Price).Wrap(err)
	}
	var conf uint64
	if parsed.Price.Conf != "" {
		if conf, err = strconv.ParseUint(parsed.Price.Conf, 10, 64); err != nil {
			return nil, errors.ErrInvalidPrice.Explain("malformed confidence %q", parsed.Price.Conf).Wrap(err)
		}
	}

	return &PriceUpdate{
		FeedID:      parsed.ID,
		Price:       price,
		Conf:        conf,
		Exponent:    parsed.Price.Expo,
		PublishTime: time.Unix(parsed.Price.PublishTime, 0),
	}, nil
}
