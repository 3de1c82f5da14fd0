package ledger

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Seeds for accounts derived from an owner
const (
	CustodySeed = "sol"
	TokenSeed   = "token"
)

// DeriveAccount returns the deterministic account reference for owner under seed
func DeriveAccount(seed, owner string) string {
	sum := sha256.Sum256(append([]byte(seed), owner...))
	return base58.Encode(sum[:])
}
