package oracle

import (
	"context"
	"sync"
	"time"
)

// StaticFeed reports a fixed price, always freshly published
type StaticFeed struct {
	mu          sync.RWMutex
	price       int64
	exponent    int32
	publishTime time.Time
	clock       func() time.Time
}

// NewStaticFeed creates a feed reporting price at FeedExponent
func NewStaticFeed(price int64) *StaticFeed {
	return &StaticFeed{price: price, exponent: FeedExponent, clock: time.Now}
}

// SetPrice changes the reported price
func (s *StaticFeed) SetPrice(price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = price
}

// SetExponent changes the reported exponent
func (s *StaticFeed) SetExponent(exponent int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exponent = exponent
}

// SetPublishTime pins the publish time; the zero time means now
func (s *StaticFeed) SetPublishTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishTime = t
}

// GetPrice implements PriceFeed
func (s *StaticFeed) GetPrice(_ context.Context, feedID string) (*PriceUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	published := s.publishTime
	if published.IsZero() {
		published = s.clock()
	}
	return &PriceUpdate{
		FeedID:      feedID,
		Price:       s.price,
		Exponent:    s.exponent,
		PublishTime: published,
	}, nil
}
