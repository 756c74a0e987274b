package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/verify"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

type requestComputationBody struct {
	Requester string `json:"requester"`
	Input     []byte `json:"input"`   // Raw input bytes, base64 in JSON
	Payment   int64  `json:"payment"` // Micro-units offered
}

func (s *Server) handleRequestComputation(w http.ResponseWriter, r *http.Request) {
	var body requestComputationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Requester == "" || len(body.Input) == 0 {
		writeError(w, http.StatusBadRequest, "requester and input are required")
		return
	}

	task, err := s.lifecycle.RequestComputation(r.Context(), body.Requester, body.Input, body.Payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	state := domain.TaskState(r.URL.Query().Get("state"))
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = n
	}

	tasks, err := s.tasks.List(state, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type submitProofBody struct {
	Operator   string `json:"operator"`
	ImageID    string `json:"image_id,omitempty"`
	Input      []byte `json:"input,omitempty"`
	Proof      []byte `json:"proof"`
	Journal    []byte `json:"journal,omitempty"`
	ResultHash string `json:"result_hash"`
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	var body submitProofBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Operator == "" {
		writeError(w, http.StatusBadRequest, "operator is required")
		return
	}

	task, err := s.lifecycle.SubmitProof(r.Context(), body.Operator, chi.URLParam(r, "id"), verify.Submission{
		ImageID:    body.ImageID,
		Input:      body.Input,
		Proof:      body.Proof,
		Journal:    body.Journal,
		ResultHash: body.ResultHash,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type cancelTaskBody struct {
	Requester string `json:"requester"`
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	var body cancelTaskBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.lifecycle.CancelTask(r.Context(), body.Requester, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	res, err := s.lifecycle.Benchmark(r.Context(), chi.URLParam(r, "proofHash"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Operators ──────────────────────────────────────────────────────────────

type registerOperatorBody struct {
	Operator string `json:"operator"`
	Stake    int64  `json:"stake"` // Micro-units
}

func (s *Server) handleRegisterOperator(w http.ResponseWriter, r *http.Request) {
	var body registerOperatorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Operator == "" {
		writeError(w, http.StatusBadRequest, "operator is required")
		return
	}

	op, err := s.operators.Register(r.Context(), body.Operator, body.Stake)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := s.operators.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ops == nil {
		ops = []domain.Operator{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"operators": ops})
}

func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op, err := s.operators.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	accrued, err := s.settlement.Accrued(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operator": op,
		"accrued":  accrued,
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	amount, err := s.lifecycle.ClaimRewards(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claimed":   amount,
		"formatted": domain.FormatAmount(amount),
	})
}

// ─── Admin ──────────────────────────────────────────────────────────────────

type slashBody struct {
	Operator string `json:"operator"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

func (s *Server) handleSlash(w http.ResponseWriter, r *http.Request) {
	var body slashBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Operator == "" || body.Reason == "" {
		writeError(w, http.StatusBadRequest, "operator and reason are required")
		return
	}

	op, err := s.operators.Slash(r.Context(), body.Operator, body.Amount, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

type baseRewardBody struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleSetBaseReward(w http.ResponseWriter, r *http.Request) {
	var body baseRewardBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.settlement.SetBaseReward(body.Amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"base_reward": body.Amount})
}

type withdrawBody struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var body withdrawBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	if err := s.settlement.Withdraw(r.Context(), body.Recipient, body.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"withdrawn": body.Amount,
		"recipient": body.Recipient,
	})
}

type mintBody struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// handleMint is the dev faucet. Available only when the ledger can mint,
// which a chain-backed adapter cannot.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if s.minter == nil {
		writeError(w, http.StatusNotImplemented, "minting is not available on this ledger")
		return
	}

	var body mintBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Account == "" || body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "account and a positive amount are required")
		return
	}

	s.minter.Mint(body.Account, body.Amount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": body.Account,
		"minted":  body.Amount,
	})
}
