package morpho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/require"
)

// rpcRequest is the minimal slice of a JSON-RPC 2.0 request the fake node
// decodes: the id to echo back and the method to dispatch on.
type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func newFakeHeadNode(t *testing.T, latestBlockHex string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_getBlockByNumber":
			resp := map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result": map[string]any{
					"number":           latestBlockHex,
					"hash":             "0x" + "11",
					"parentHash":       "0x" + strings.Repeat("00", 32),
					"nonce":            "0x0000000000000000",
					"mixHash":          "0x" + strings.Repeat("00", 32),
					"sha3Uncles":       "0x" + strings.Repeat("00", 32),
					"logsBloom":        "0x" + strings.Repeat("00", 256),
					"transactionsRoot": "0x" + strings.Repeat("00", 32),
					"stateRoot":        "0x" + strings.Repeat("00", 32),
					"receiptsRoot":     "0x" + strings.Repeat("00", 32),
					"miner":            "0x0000000000000000000000000000000000000000",
					"difficulty":       "0x0",
					"extraData":        "0x",
					"gasLimit":         "0x0",
					"gasUsed":          "0x0",
					"timestamp":        "0x0",
				},
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		default:
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": nil}))
		}
	}))
}

func TestResolveBlock_CurrentReturnsNilForLatest(t *testing.T) {
	srv := newFakeHeadNode(t, "0x64")
	defer srv.Close()

	client, err := ethclient.DialContext(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	cfg := &ChainConfig{ChainID: 1, AvgBlockTime: 12 * time.Second}
	now := time.Now()

	block, err := resolveBlock(context.Background(), client, cfg, now, now)
	require.NoError(t, err)
	require.Nil(t, block, "atTime == now should resolve to latest (nil block number)")
}

func TestResolveBlock_PastOffsetSubtractsEstimatedBlocks(t *testing.T) {
	srv := newFakeHeadNode(t, "0x64") // 100
	defer srv.Close()

	client, err := ethclient.DialContext(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	cfg := &ChainConfig{ChainID: 1, AvgBlockTime: 12 * time.Second}
	now := time.Now()
	atTime := now.Add(-120 * time.Second) // 10 blocks back at 12s/block

	block, err := resolveBlock(context.Background(), client, cfg, now, atTime)
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Equal(t, int64(90), block.Int64())
}

func TestResolveBlock_ZeroAvgBlockTimeErrors(t *testing.T) {
	srv := newFakeHeadNode(t, "0x64")
	defer srv.Close()

	client, err := ethclient.DialContext(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	cfg := &ChainConfig{ChainID: 1, AvgBlockTime: 0}
	now := time.Now()

	_, err = resolveBlock(context.Background(), client, cfg, now, now.Add(-time.Second))
	require.Error(t, err)
}
