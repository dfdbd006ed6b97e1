package submitter

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

const signSubmitPath = "/rofl/v1/tx/sign-submit"

type enclaveTxData struct {
	GasLimit uint64 `json:"gas_limit"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Data     string `json:"data"`
}

type enclaveTxRequest struct {
	Kind string        `json:"kind"`
	Data enclaveTxData `json:"data"`
}

type enclaveEnvelope struct {
	Tx      map[string]interface{} `json:"tx"`
	Encrypt bool                   `json:"encrypt"`
}

type enclaveOutcomeKind int

const (
	enclaveOutcomeSuccess enclaveOutcomeKind = iota
	enclaveOutcomeFailure
	enclaveOutcomeUnknown
)

type enclaveResult struct {
	outcome enclaveOutcomeKind
	txHash  common.Hash
	message string
}

// enclaveSigner speaks the ROFL enclave signer daemon's wire protocol: a
// JSON request over HTTP (optionally over a Unix domain socket), with a
// hex-encoded CBOR response body.
type enclaveSigner struct {
	httpClient *http.Client
	baseURL    string
}

func newEnclaveSigner(addr string) *enclaveSigner {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return &enclaveSigner{httpClient: &http.Client{Timeout: 30 * time.Second}, baseURL: addr}
	}

	// Treat anything else as a Unix domain socket path, dialed via a
	// custom Transport the way net/http's own docs recommend for non-TCP
	// listeners — there is no special "http over unix socket" client.
	socketPath := addr
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &enclaveSigner{
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		baseURL:    "http://unix",
	}
}

func (e *enclaveSigner) signAndSubmit(ctx context.Context, req enclaveTxRequest) (*enclaveResult, error) {
	envelope := enclaveEnvelope{
		Tx: map[string]interface{}{
			"kind": req.Kind,
			"data": req.Data,
		},
		Encrypt: false,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+signSubmitPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post to enclave daemon: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enclave daemon returned HTTP %d: %s", resp.StatusCode, rawBody)
	}

	var wire struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &wire); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}

	cborBytes, err := hex.DecodeString(strings.TrimPrefix(wire.Data, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode hex-encoded cbor payload: %w", err)
	}

	var decoded map[string]interface{}
	if err := cbor.Unmarshal(cborBytes, &decoded); err != nil {
		return nil, fmt.Errorf("decode cbor payload: %w", err)
	}

	return interpretEnclaveResponse(decoded), nil
}

// interpretEnclaveResponse implements the documented fallback: a map
// keyed "ok" means success, one keyed "error" means failure, and any
// other shape is provisional success with a warning left for the caller
// to log — the production daemon's exact contract for that third case is
// still an open question (see DESIGN.md).
func interpretEnclaveResponse(decoded map[string]interface{}) *enclaveResult {
	if errVal, ok := decoded["error"]; ok {
		return &enclaveResult{outcome: enclaveOutcomeFailure, message: fmt.Sprintf("%v", errVal)}
	}

	if okVal, ok := decoded["ok"]; ok {
		var txHash common.Hash
		if s, ok := okVal.(string); ok {
			txHash = common.HexToHash(s)
		} else if m, ok := okVal.(map[string]interface{}); ok {
			if s, ok := m["tx_hash"].(string); ok {
				txHash = common.HexToHash(s)
			}
		}
		return &enclaveResult{outcome: enclaveOutcomeSuccess, txHash: txHash}
	}

	return &enclaveResult{
		outcome: enclaveOutcomeUnknown,
		message: "enclave response contained neither \"ok\" nor \"error\"; treating as provisional success",
	}
}
