package submitter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

func TestInterpretEnclaveResponseSuccessWithTxHash(t *testing.T) {
	decoded := map[string]interface{}{
		"ok": "0x1122334455667788990011223344556611223344556677889900112233445566",
	}
	result := interpretEnclaveResponse(decoded)
	if result.outcome != enclaveOutcomeSuccess {
		t.Fatalf("outcome = %v, want success", result.outcome)
	}
	if want := common.HexToHash(decoded["ok"].(string)); result.txHash != want {
		t.Fatalf("txHash = %s, want %s", result.txHash, want)
	}
}

func TestInterpretEnclaveResponseFailure(t *testing.T) {
	decoded := map[string]interface{}{"error": "insufficient funds"}
	result := interpretEnclaveResponse(decoded)
	if result.outcome != enclaveOutcomeFailure {
		t.Fatalf("outcome = %v, want failure", result.outcome)
	}
	if result.message != "insufficient funds" {
		t.Fatalf("message = %q, want %q", result.message, "insufficient funds")
	}
}

func TestInterpretEnclaveResponseUnknownShape(t *testing.T) {
	decoded := map[string]interface{}{"something_else": true}
	result := interpretEnclaveResponse(decoded)
	if result.outcome != enclaveOutcomeUnknown {
		t.Fatalf("outcome = %v, want unknown", result.outcome)
	}
}

func TestSignAndSubmitOverHTTP(t *testing.T) {
	cborBody, err := cbor.Marshal(map[string]interface{}{"ok": "0xdeadbeef"})
	if err != nil {
		t.Fatalf("marshal cbor fixture: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != signSubmitPath {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		resp := map[string]string{"data": hex.EncodeToString(cborBody)}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	signer := newEnclaveSigner(srv.URL)
	result, err := signer.signAndSubmit(context.Background(), enclaveTxRequest{
		Kind: "eth",
		Data: enclaveTxData{GasLimit: 100000, To: "00", Value: "0", Data: "00"},
	})
	if err != nil {
		t.Fatalf("signAndSubmit: %v", err)
	}
	if result.outcome != enclaveOutcomeSuccess {
		t.Fatalf("outcome = %v, want success", result.outcome)
	}
}

func TestSignAndSubmitOverUnixSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "enclave.sock")

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen on unix socket: %v", err)
	}

	cborBody, err := cbor.Marshal(map[string]interface{}{"error": "reverted"})
	if err != nil {
		t.Fatalf("marshal cbor fixture: %v", err)
	}

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"data": hex.EncodeToString(cborBody)}
		json.NewEncoder(w).Encode(resp)
	})}
	go srv.Serve(listener)
	defer srv.Close()
	defer os.Remove(socketPath)

	signer := newEnclaveSigner(socketPath)
	result, err := signer.signAndSubmit(context.Background(), enclaveTxRequest{
		Kind: "eth",
		Data: enclaveTxData{GasLimit: 100000, To: "00", Value: "0", Data: "00"},
	})
	if err != nil {
		t.Fatalf("signAndSubmit: %v", err)
	}
	if result.outcome != enclaveOutcomeFailure {
		t.Fatalf("outcome = %v, want failure", result.outcome)
	}
	if result.message != "reverted" {
		t.Fatalf("message = %q, want %q", result.message, "reverted")
	}
}

func TestSignAndSubmitRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	signer := newEnclaveSigner(srv.URL)
	_, err := signer.signAndSubmit(context.Background(), enclaveTxRequest{Kind: "eth"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
