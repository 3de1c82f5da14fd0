package oracle

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/pkg/errors"
)

type feedFunc func(ctx context.Context, feedID string) (*PriceUpdate, error)

func (f feedFunc) GetPrice(ctx context.Context, feedID string) (*PriceUpdate, error) {
	return f(ctx, feedID)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestQuoteUSDValueExample(t *testing.T) {
	q := Quote{Price: 200_000_000, Exponent: FeedExponent}

	usd, err := q.USDValue(10_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000_000_000), usd)

	base, err := q.BaseUnitsFromUSD(usd)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000_000), base)
	assert.Equal(t, "2", q.Decimal().String())
}

func TestRoundTripWithinOneUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, price := range []uint64{123_456_789, 200_000_000, 15_012_345_678, 6_543_210_000_000} {
		q := Quote{Price: price, Exponent: FeedExponent}
		for i := 0; i < 500; i++ {
			x := uint64(rng.Int63n(1_000_000_000_000))
			usd, err := q.USDValue(x)
			require.NoError(t, err)
			back, err := q.BaseUnitsFromUSD(usd)
			require.NoError(t, err)
			require.LessOrEqual(t, back, x)
			require.LessOrEqual(t, x-back, uint64(1), "price %d x %d", price, x)
		}
	}
}

func TestConversionOverflow(t *testing.T) {
	q := Quote{Price: 200_000_000, Exponent: FeedExponent}
	_, err := q.USDValue(math.MaxUint64)
	assert.ErrorIs(t, err, errors.ErrArithmeticOverflow)

	cheap := Quote{Price: 1, Exponent: FeedExponent}
	_, err = cheap.BaseUnitsFromUSD(math.MaxUint64)
	assert.ErrorIs(t, err, errors.ErrArithmeticOverflow)
}

func TestQuoteValidation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		update  PriceUpdate
		wantErr error
	}{
		{"valid", PriceUpdate{Price: 200_000_000, Exponent: -8, PublishTime: now}, nil},
		{"at max age", PriceUpdate{Price: 200_000_000, Exponent: -8, PublishTime: now.Add(-MaximumAge)}, nil},
		{"stale", PriceUpdate{Price: 200_000_000, Exponent: -8, PublishTime: now.Add(-MaximumAge - time.Second)}, errors.ErrStalePrice},
		{"zero price", PriceUpdate{Price: 0, Exponent: -8, PublishTime: now}, errors.ErrInvalidPrice},
		{"negative price", PriceUpdate{Price: -5, Exponent: -8, PublishTime: now}, errors.ErrInvalidPrice},
		{"wrong exponent", PriceUpdate{Price: 200_000_000, Exponent: -6, PublishTime: now}, errors.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := tt.update
			feed := feedFunc(func(_ context.Context, feedID string) (*PriceUpdate, error) {
				update.FeedID = feedID
				return &update, nil
			})
			client := NewClient(feed, SOLUSDFeedID, zap.NewNop(), WithClock(fixedClock(now)))

			quote, err := client.Quote(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, quote)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(tt.update.Price), quote.Price)
		})
	}
}

func TestQuoteRejectsFeedMismatch(t *testing.T) {
	feed := feedFunc(func(_ context.Context, _ string) (*PriceUpdate, error) {
		return &PriceUpdate{FeedID: "0xdeadbeef", Price: 1, Exponent: -8, PublishTime: time.Now()}, nil
	})
	_, err := NewClient(feed, SOLUSDFeedID, zap.NewNop()).Quote(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidPrice)
}

func TestQuoteAcceptsUnprefixedFeedID(t *testing.T) {
	feed := feedFunc(func(_ context.Context, _ string) (*PriceUpdate, error) {
		return &PriceUpdate{FeedID: SOLUSDFeedID[2:], Price: 1, Exponent: -8, PublishTime: time.Now()}, nil
	})
	_, err := NewClient(feed, SOLUSDFeedID, zap.NewNop()).Quote(context.Background())
	assert.NoError(t, err)
}

func TestClientConversionsUseFreshQuote(t *testing.T) {
	feed := NewStaticFeed(200_000_000)
	client := NewClient(feed, SOLUSDFeedID, zap.NewNop())

	usd, err := client.USDValue(context.Background(), 10_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000_000_000), usd)

	feed.SetPrice(400_000_000)
	base, err := client.BaseUnitsFromUSD(context.Background(), 20_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000_000), base)

	feed.SetPublishTime(time.Now().Add(-time.Hour))
	_, err = client.USDValue(context.Background(), 1)
	assert.ErrorIs(t, err, errors.ErrStalePrice)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "20.000000000", FormatUnits(20_000_000_000))
	assert.Equal(t, "0.000000001", FormatUnits(1))
}
