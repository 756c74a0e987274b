// Package verify implements the proof verification gateway.
//
// A gateway is a pure decision function: it inspects a proof submission and
// reports accept or reject, never touching task or settlement state. The
// lifecycle controller owns every state transition that follows from the
// decision. Three gateways exist, selected by configuration: a permissive
// one for development, a delegated one that defers to an external verifier
// service, and a Groth16 one that checks a BN254 proof in-process.
package verify

import (
	"context"
	"fmt"

	"github.com/coproc-network/coproc/internal/domain"
)

// Submission carries everything an operator provides when claiming a task.
type Submission struct {
	ImageID    string `json:"image_id"`    // Guest program identifier
	Input      []byte `json:"input"`       // Input the computation ran over
	Proof      []byte `json:"proof"`       // Opaque proof bytes
	Journal    []byte `json:"journal"`     // Public output committed by the proof
	ResultHash string `json:"result_hash"` // Declared result digest, hex
}

// Gateway decides whether a proof submission is valid for a task.
//
// The boolean is the decision; the error carries diagnostic detail for
// logging and events. A gateway failure of any kind is a rejection; there
// is no path on which an unverified proof is treated as accepted.
type Gateway interface {
	Name() string
	Verify(ctx context.Context, task domain.Task, sub Submission) (bool, error)
}

// New constructs the gateway named by mode. The delegated mode requires a
// verifier URL; the groth16 mode requires verifying key bytes.
func New(mode, verifierURL string, vkBytes []byte) (Gateway, error) {
	switch mode {
	case "permissive", "":
		return Permissive{}, nil
	case "delegated":
		if verifierURL == "" {
			return nil, fmt.Errorf("delegated gateway requires a verifier URL")
		}
		return NewDelegated(verifierURL), nil
	case "groth16":
		return NewGroth16(vkBytes)
	default:
		return nil, fmt.Errorf("unknown verifier mode %q", mode)
	}
}
