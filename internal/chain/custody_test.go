package chain

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"dex-sniper-core/internal/domain"
)

type stubSigner struct {
	signed string
	err    error
}

func (s *stubSigner) SignSwap(_ context.Context, _ *domain.ProxyTrade) (string, error) {
	return s.signed, s.err
}

func rpcServer(t *testing.T, handler func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": handler(req)}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newCustody(chainName string, server *httptest.Server) *Custody {
	return NewCustody(
		&stubSigner{signed: "signed-payload"},
		map[string]*Client{chainName: NewClient(server.URL)},
		log.New(io.Discard, "", 0),
	)
}

func TestCustody_SubmitSolana(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "sendTransaction" {
			t.Errorf("method = %s, want sendTransaction", req.Method)
		}
		return "5sig"
	})
	defer server.Close()

	c := newCustody("solana", server)
	txHash, err := c.Submit(context.Background(), "solana", "signed-payload")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if txHash != "5sig" {
		t.Errorf("tx hash = %s", txHash)
	}
}

func TestCustody_SubmitEVM(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "eth_sendRawTransaction" {
			t.Errorf("method = %s, want eth_sendRawTransaction", req.Method)
		}
		return "0xhash"
	})
	defer server.Close()

	c := newCustody("bsc", server)
	txHash, err := c.Submit(context.Background(), "bsc", "0xsigned")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if txHash != "0xhash" {
		t.Errorf("tx hash = %s", txHash)
	}
}

func TestCustody_UnknownChain(t *testing.T) {
	c := NewCustody(&stubSigner{}, map[string]*Client{}, log.New(io.Discard, "", 0))
	if _, err := c.Submit(context.Background(), "unknown", "tx"); err == nil {
		t.Fatal("expected error for unknown chain")
	}
	if _, err := c.GetReceipt(context.Background(), "unknown", "0xhash"); err == nil {
		t.Fatal("expected error for unknown chain")
	}
}

func TestCustody_SolanaReceipt(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		pending bool
		success bool
	}{
		{
			name:    "not yet processed",
			value:   []interface{}{nil},
			pending: true,
		},
		{
			name: "processed but unconfirmed",
			value: []interface{}{
				map[string]interface{}{"slot": 100, "confirmationStatus": "processed"},
			},
			pending: true,
		},
		{
			name: "confirmed success",
			value: []interface{}{
				map[string]interface{}{"slot": 100, "confirmationStatus": "confirmed"},
			},
			success: true,
		},
		{
			name: "finalized with error",
			value: []interface{}{
				map[string]interface{}{
					"slot":               100,
					"confirmationStatus": "finalized",
					"err":                map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
				},
			},
			success: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := rpcServer(t, func(req rpcRequest) interface{} {
				if req.Method != "getSignatureStatuses" {
					t.Errorf("method = %s", req.Method)
				}
				return map[string]interface{}{"value": tt.value}
			})
			defer server.Close()

			c := newCustody("solana", server)
			receipt, err := c.GetReceipt(context.Background(), "solana", "5sig")
			if err != nil {
				t.Fatalf("GetReceipt: %v", err)
			}
			if tt.pending {
				if receipt != nil {
					t.Fatalf("expected pending, got %+v", receipt)
				}
				return
			}
			if receipt == nil {
				t.Fatal("expected receipt, got nil")
			}
			if receipt.Success != tt.success {
				t.Errorf("success = %v, want %v", receipt.Success, tt.success)
			}
		})
	}
}

func TestCustody_EVMReceipt(t *testing.T) {
	t.Run("not mined", func(t *testing.T) {
		server := rpcServer(t, func(req rpcRequest) interface{} { return nil })
		defer server.Close()

		c := newCustody("bsc", server)
		receipt, err := c.GetReceipt(context.Background(), "bsc", "0xhash")
		if err != nil {
			t.Fatalf("GetReceipt: %v", err)
		}
		if receipt != nil {
			t.Fatalf("expected nil receipt, got %+v", receipt)
		}
	})

	t.Run("reverted", func(t *testing.T) {
		server := rpcServer(t, func(req rpcRequest) interface{} {
			return map[string]interface{}{
				"transactionHash": "0xhash",
				"status":          "0x0",
				"blockNumber":     "0x10",
			}
		})
		defer server.Close()

		c := newCustody("bsc", server)
		receipt, err := c.GetReceipt(context.Background(), "bsc", "0xhash")
		if err != nil {
			t.Fatalf("GetReceipt: %v", err)
		}
		if receipt == nil || receipt.Success {
			t.Fatalf("expected reverted receipt, got %+v", receipt)
		}
	})

	t.Run("success", func(t *testing.T) {
		server := rpcServer(t, func(req rpcRequest) interface{} {
			return map[string]interface{}{
				"transactionHash": "0xhash",
				"status":          "0x1",
				"blockNumber":     "0x10",
			}
		})
		defer server.Close()

		c := newCustody("bsc", server)
		receipt, err := c.GetReceipt(context.Background(), "bsc", "0xhash")
		if err != nil {
			t.Fatalf("GetReceipt: %v", err)
		}
		if receipt == nil || !receipt.Success {
			t.Fatalf("expected success receipt, got %+v", receipt)
		}
	})
}
