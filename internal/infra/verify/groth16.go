package verify

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/coproc-network/coproc/internal/domain"
)

// resultCircuit is the result-commitment circuit: the prover knows a
// preimage whose MiMC hash equals the publicly declared result digest.
type resultCircuit struct {
	Preimage frontend.Variable `gnark:",secret"`
	Digest   frontend.Variable `gnark:",public"`
}

func (c *resultCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Preimage)
	api.AssertIsEqual(c.Digest, h.Sum())
	return nil
}

// Groth16 verifies BN254 Groth16 proofs in-process against a fixed
// verifying key. The public witness is the declared result digest; any
// deserialization or verification failure is a rejection.
type Groth16 struct {
	vk groth16.VerifyingKey
}

// NewGroth16 constructs the gateway from serialized verifying key bytes.
func NewGroth16(vkBytes []byte) (*Groth16, error) {
	if len(vkBytes) == 0 {
		return nil, fmt.Errorf("groth16 gateway requires a verifying key")
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return nil, fmt.Errorf("deserialize verifying key: %w", err)
	}
	return &Groth16{vk: vk}, nil
}

func (g *Groth16) Name() string { return "groth16" }

func (g *Groth16) Verify(_ context.Context, _ domain.Task, sub Submission) (bool, error) {
	if len(sub.Proof) == 0 {
		return false, domain.ErrEmptyProof
	}

	digest, ok := new(big.Int).SetString(sub.ResultHash, 16)
	if !ok {
		return false, fmt.Errorf("result hash is not valid hex: %q", sub.ResultHash)
	}
	if digest.Cmp(ecc.BN254.ScalarField()) >= 0 {
		return false, fmt.Errorf("result digest exceeds the scalar field")
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(sub.Proof)); err != nil {
		return false, fmt.Errorf("deserialize proof: %w", err)
	}

	assignment := &resultCircuit{Digest: digest}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("build public witness: %w", err)
	}

	if err := groth16.Verify(proof, g.vk, publicWitness); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrProofRejected, err)
	}
	return true, nil
}
