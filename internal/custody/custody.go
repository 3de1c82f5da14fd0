// Package custody moves base collateral between owners and the protocol vault
package custody

import (
	"context"
	"net/url"
	"sync"

	"github.com/Aidin1998/stablecoin/internal/collaborator"
	"github.com/Aidin1998/stablecoin/pkg/errors"
)

// Vault is the custody collaborator
type Vault interface {
	Deposit(ctx context.Context, from string, amount uint64) error
	Withdraw(ctx context.Context, to string, amount uint64) error
	Balance(ctx context.Context, owner string) (uint64, error)
}

// MemoryVault keeps custody balances in process
type MemoryVault struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// NewMemoryVault creates an empty vault
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{balances: make(map[string]uint64)}
}

// Deposit implements Vault
func (v *MemoryVault) Deposit(_ context.Context, from string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.balances[from] + amount
	if next < amount {
		return errors.ErrCollaboratorFailure.Explain("custody balance of %s would overflow", from)
	}
	v.balances[from] = next
	return nil
}

// Withdraw implements Vault
func (v *MemoryVault) Withdraw(_ context.Context, to string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.balances[to] < amount {
		return errors.ErrCollaboratorFailure.Explain("custody balance of %s is %d, cannot withdraw %d", to, v.balances[to], amount)
	}
	v.balances[to] -= amount
	return nil
}

// Balance implements Vault
func (v *MemoryVault) Balance(_ context.Context, owner string) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[owner], nil
}

// HTTPVault calls a remote custody service
type HTTPVault struct {
	client *collaborator.Client
}

type transferRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount,string"`
}

type balanceResponse struct {
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance,string"`
}

// NewHTTPVault creates a custody client
func NewHTTPVault(client *collaborator.Client) *HTTPVault {
	return &HTTPVault{client: client}
}

// Deposit implements Vault
func (v *HTTPVault) Deposit(ctx context.Context, from string, amount uint64) error {
	return v.client.Post(ctx, "/v1/deposits", transferRequest{Owner: from, Amount: amount}, nil)
}

// Withdraw implements Vault
func (v *HTTPVault) Withdraw(ctx context.Context, to string, amount uint64) error {
	return v.client.Post(ctx, "/v1/withdrawals", transferRequest{Owner: to, Amount: amount}, nil)
}

// Balance implements Vault
func (v *HTTPVault) Balance(ctx context.Context, owner string) (uint64, error) {
	var out balanceResponse
	if err := v.client.Get(ctx, "/v1/balances/"+url.PathEscape(owner), &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}
