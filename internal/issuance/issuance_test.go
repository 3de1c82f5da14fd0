package issuance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/stablecoin/internal/collaborator"
	"github.com/Aidin1998/stablecoin/internal/credential"
	"github.com/Aidin1998/stablecoin/pkg/errors"
)

func TestMemoryGateway(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	require.NoError(t, g.Mint(ctx, "alice", 10))
	require.NoError(t, g.Mint(ctx, "bob", 5))
	assert.Equal(t, uint64(15), g.Supply())

	assert.ErrorIs(t, g.Burn(ctx, "alice", 11), errors.ErrCollaboratorFailure)
	require.NoError(t, g.Burn(ctx, "alice", 4))
	assert.Equal(t, uint64(6), g.BalanceOf("alice"))
	assert.Equal(t, uint64(11), g.Supply())
}

func TestHTTPGateway(t *testing.T) {
	signer := credential.NewSigner("service-secret-0123456789", "stablecoin")
	var mu sync.Mutex
	var requests []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := signer.Verify(r.Header.Get("Authorization"), "issuance"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		requests = append(requests, r.URL.Path+" "+req["owner"]+" "+req["amount"])
		mu.Unlock()
		if req["amount"] == "999" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := collaborator.NewClient(collaborator.Options{BaseURL: srv.URL, Audience: "issuance", Timeout: time.Second},
		credential.NewServiceCredential(signer, "ledger"), zap.NewNop())
	g := NewHTTPGateway(client)
	ctx := context.Background()

	require.NoError(t, g.Mint(ctx, "alice", 10_000_000_000))
	require.NoError(t, g.Burn(ctx, "alice", 1))
	assert.ErrorIs(t, g.Burn(ctx, "alice", 999), errors.ErrCollaboratorFailure)

	assert.Equal(t, []string{
		"/v1/mint alice 10000000000",
		"/v1/burn alice 1",
		"/v1/burn alice 999",
	}, requests)
}
