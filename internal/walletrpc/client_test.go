package walletrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type rpcCall struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// newTestClient wires a client against an httptest JSON-RPC server and
// records every method invoked.
func newTestClient(t *testing.T, walletPass string, handler func(call rpcCall) (any, *RPCError)) (*Client, *[]string, func()) {
	t.Helper()

	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("Expected basic auth on RPC request")
		}

		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Fatalf("Failed to decode RPC request: %v", err)
		}
		methods = append(methods, call.Method)

		result, rpcErr := handler(call)
		resp := map[string]any{"result": result, "error": rpcErr}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("Failed to encode RPC response: %v", err)
		}
	}))

	client := &Client{
		endpoint:     server.URL,
		username:     "user",
		password:     "pass",
		walletPass:   walletPass,
		accountIndex: "0",
		httpClient:   server.Client(),
	}
	return client, &methods, server.Close
}

func TestRequest_ReturnsResult(t *testing.T) {
	client, _, cleanup := newTestClient(t, "", func(call rpcCall) (any, *RPCError) {
		return 12.5, nil
	})
	defer cleanup()

	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 12.5 {
		t.Errorf("Expected 12.5, got %f", balance)
	}
}

func TestRequest_TypedRPCError(t *testing.T) {
	client, _, cleanup := newTestClient(t, "", func(call rpcCall) (any, *RPCError) {
		return nil, &RPCError{Code: -6, Message: "Insufficient funds"}
	})
	defer cleanup()

	_, err := client.GetBalance(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -6 {
		t.Errorf("Expected code -6, got %d", rpcErr.Code)
	}
}

func TestRequest_UnlocksWalletAndRetries(t *testing.T) {
	unlocked := false
	client, methods, cleanup := newTestClient(t, "secret", func(call rpcCall) (any, *RPCError) {
		switch call.Method {
		case "walletlock":
			return nil, nil
		case "walletpassphrase":
			if call.Params[0] != "secret" {
				return nil, &RPCError{Code: -14, Message: "wrong passphrase"}
			}
			unlocked = true
			return nil, nil
		default:
			if !unlocked {
				return nil, &RPCError{Code: walletUnlockCode, Message: walletUnlockMessage}
			}
			return 3.0, nil
		}
	})
	defer cleanup()

	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 3.0 {
		t.Errorf("Expected 3.0 after unlock, got %f", balance)
	}

	want := []string{"getbalance", "walletlock", "walletpassphrase", "getbalance"}
	if len(*methods) != len(want) {
		t.Fatalf("Expected call sequence %v, got %v", want, *methods)
	}
	for i, method := range want {
		if (*methods)[i] != method {
			t.Errorf("Call %d: expected %s, got %s", i, method, (*methods)[i])
		}
	}
}

func TestRequest_UnlockRetriesAreBounded(t *testing.T) {
	client, methods, cleanup := newTestClient(t, "secret", func(call rpcCall) (any, *RPCError) {
		switch call.Method {
		case "walletlock", "walletpassphrase":
			return nil, nil
		default:
			// Stays locked no matter how often we unlock
			return nil, &RPCError{Code: walletUnlockCode, Message: walletUnlockMessage}
		}
	})
	defer cleanup()

	_, err := client.GetBalance(context.Background())
	if err == nil {
		t.Fatal("Expected error when wallet never unlocks")
	}

	attempts := 0
	for _, method := range *methods {
		if method == "getbalance" {
			attempts++
		}
	}
	if attempts != maxUnlockRetries+1 {
		t.Errorf("Expected %d attempts, got %d", maxUnlockRetries+1, attempts)
	}
}

func TestRequest_NoPassphraseNoUnlockAttempt(t *testing.T) {
	client, methods, cleanup := newTestClient(t, "", func(call rpcCall) (any, *RPCError) {
		return nil, &RPCError{Code: walletUnlockCode, Message: walletUnlockMessage}
	})
	defer cleanup()

	if _, err := client.GetBalance(context.Background()); err == nil {
		t.Fatal("Expected locked-wallet error to propagate")
	}
	if len(*methods) != 1 {
		t.Errorf("Expected no unlock attempt without a passphrase, got calls %v", *methods)
	}
}

func TestGetIncomingTransactions_FiltersCategoryAndAddress(t *testing.T) {
	client, _, cleanup := newTestClient(t, "", func(call rpcCall) (any, *RPCError) {
		return []map[string]any{
			{"txid": "tx1", "address": "dep1", "category": "receive", "amount": 1.5, "confirmations": 10, "time": 1700000000},
			{"txid": "tx2", "address": "dep1", "category": "send", "amount": -1.5},
			{"txid": "tx3", "address": "other", "category": "receive", "amount": 2.0},
		}, nil
	})
	defer cleanup()

	transactions, err := client.GetIncomingTransactions(context.Background(), "dep1")
	if err != nil {
		t.Fatalf("GetIncomingTransactions failed: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("Expected 1 incoming transaction, got %d", len(transactions))
	}
	if transactions[0].TxID != "tx1" {
		t.Errorf("Expected tx1, got %s", transactions[0].TxID)
	}
}

func TestMultiSend_SingleHash(t *testing.T) {
	client, _, cleanup := newTestClient(t, "", func(call rpcCall) (any, *RPCError) {
		if call.Method != "sendmany" {
			t.Errorf("Expected sendmany, got %s", call.Method)
		}
		return "payout-hash", nil
	})
	defer cleanup()

	hashes, err := client.MultiSend(context.Background(), map[string]float64{"addr1": 1.0, "addr2": 2.0})
	if err != nil {
		t.Fatalf("MultiSend failed: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != "payout-hash" {
		t.Errorf("Expected [payout-hash], got %v", hashes)
	}
}

func TestMultiSend_NoDestinations(t *testing.T) {
	client, _, cleanup := newTestClient(t, "", func(call rpcCall) (any, *RPCError) {
		t.Error("No RPC call expected for an empty destination set")
		return nil, nil
	})
	defer cleanup()

	if _, err := client.MultiSend(context.Background(), nil); err == nil {
		t.Error("Expected error for empty destinations")
	}
}

func TestValidateAddress(t *testing.T) {
	client, _, cleanup := newTestClient(t, "", func(call rpcCall) (any, *RPCError) {
		return map[string]any{"isvalid": call.Params[0] == "good"}, nil
	})
	defer cleanup()

	valid, err := client.ValidateAddress(context.Background(), "good")
	if err != nil {
		t.Fatalf("ValidateAddress failed: %v", err)
	}
	if !valid {
		t.Error("Expected good to validate")
	}

	valid, err = client.ValidateAddress(context.Background(), "bad")
	if err != nil {
		t.Fatalf("ValidateAddress failed: %v", err)
	}
	if valid {
		t.Error("Expected bad to fail validation")
	}
}
