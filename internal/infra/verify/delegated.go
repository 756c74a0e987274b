package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
)

// verifyTimeout bounds a single verifier round trip. Proof checking is CPU
// work on the verifier's side, not ours, so the bound is generous but firm.
const verifyTimeout = 30 * time.Second

// Delegated defers proof checking to an external verifier service over
// HTTP. Transport failures, non-200 responses, and malformed bodies are all
// rejections; the gateway never falls back to accepting unverified proofs.
type Delegated struct {
	baseURL string
	client  *http.Client
}

// NewDelegated creates a gateway talking to the verifier at baseURL.
func NewDelegated(baseURL string) *Delegated {
	return &Delegated{
		baseURL: baseURL,
		client:  &http.Client{Timeout: verifyTimeout},
	}
}

func (d *Delegated) Name() string { return "delegated" }

type verifyRequest struct {
	TaskID     string `json:"task_id"`
	ImageID    string `json:"image_id"`
	Input      []byte `json:"input"`
	Proof      []byte `json:"proof"`
	Journal    []byte `json:"journal"`
	ResultHash string `json:"result_hash"`
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (d *Delegated) Verify(ctx context.Context, task domain.Task, sub Submission) (bool, error) {
	if len(sub.Proof) == 0 {
		return false, domain.ErrEmptyProof
	}

	body, err := json.Marshal(verifyRequest{
		TaskID:     task.ID,
		ImageID:    sub.ImageID,
		Input:      sub.Input,
		Proof:      sub.Proof,
		Journal:    sub.Journal,
		ResultHash: sub.ResultHash,
	})
	if err != nil {
		return false, err
	}

	resp, err := d.post(ctx, d.baseURL+"/verify", body)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: verifier returned %d", domain.ErrVerifierUnavailable, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("%w: malformed verifier response: %v", domain.ErrVerifierUnavailable, err)
	}
	if !out.Valid {
		return false, fmt.Errorf("%w by verifier: %s", domain.ErrProofRejected, out.Reason)
	}
	return true, nil
}

// BenchmarkResult reports the verifier's cost comparison between proving a
// computation and re-executing it.
type BenchmarkResult struct {
	ZKCost             int64 `json:"zk_cost"`
	NormalCostEstimate int64 `json:"normal_cost_estimate"`
	TimeSavedEstimate  int64 `json:"time_saved_estimate"` // Milliseconds
}

// Benchmark asks the verifier for cost estimates associated with a proof.
func (d *Delegated) Benchmark(ctx context.Context, proofHash string) (*BenchmarkResult, error) {
	body, err := json.Marshal(map[string]string{"proof_hash": proofHash})
	if err != nil {
		return nil, err
	}

	resp, err := d.post(ctx, d.baseURL+"/benchmark", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: verifier returned %d", domain.ErrVerifierUnavailable, resp.StatusCode)
	}

	var out BenchmarkResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: malformed benchmark response: %v", domain.ErrVerifierUnavailable, err)
	}
	return &out, nil
}

func (d *Delegated) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.client.Do(req)
}
