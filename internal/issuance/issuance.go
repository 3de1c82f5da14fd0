// Package issuance mints and burns the debt token
package issuance

import (
	"context"
	"sync"

	"github.com/Aidin1998/stablecoin/internal/collaborator"
	"github.com/Aidin1998/stablecoin/pkg/errors"
)

// Gateway is the token issuance collaborator
type Gateway interface {
	Mint(ctx context.Context, to string, amount uint64) error
	Burn(ctx context.Context, from string, amount uint64) error
}

// MemoryGateway keeps token balances in process
type MemoryGateway struct {
	mu       sync.Mutex
	balances map[string]uint64
	supply   uint64
}

// NewMemoryGateway creates a gateway with zero supply
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{balances: make(map[string]uint64)}
}

// Mint implements Gateway
func (g *MemoryGateway) Mint(_ context.Context, to string, amount uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.supply+amount < g.supply {
		return errors.ErrCollaboratorFailure.Explain("token supply would overflow")
	}
	g.balances[to] += amount
	g.supply += amount
	return nil
}

// Burn implements Gateway
func (g *MemoryGateway) Burn(_ context.Context, from string, amount uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balances[from] < amount {
		return errors.ErrCollaboratorFailure.Explain("token balance of %s is %d, cannot burn %d", from, g.balances[from], amount)
	}
	g.balances[from] -= amount
	g.supply -= amount
	return nil
}

// BalanceOf returns the token balance of owner
func (g *MemoryGateway) BalanceOf(owner string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[owner]
}

// Supply returns the total minted supply
func (g *MemoryGateway) Supply() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.supply
}

// HTTPGateway calls a remote token issuance service
type HTTPGateway struct {
	client *collaborator.Client
}

type tokenRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount,string"`
}

// NewHTTPGateway creates an issuance client
func NewHTTPGateway(client *collaborator.Client) *HTTPGateway {
	return &HTTPGateway{client: client}
}

// Mint implements Gateway
func (g *HTTPGateway) Mint(ctx context.Context, to string, amount uint64) error {
	return g.client.Post(ctx, "/v1/mint", tokenRequest{Owner: to, Amount: amount}, nil)
}

// Burn implements Gateway
func (g *HTTPGateway) Burn(ctx context.Context, from string, amount uint64) error {
	return g.client.Post(ctx, "/v1/burn", tokenRequest{Owner: from, Amount: amount}, nil)
}
