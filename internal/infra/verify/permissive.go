package verify

import (
	"context"

	"github.com/coproc-network/coproc/internal/domain"
)

// Permissive accepts any submission carrying non-empty proof bytes. It
// exists for development and demos; production deployments select the
// delegated or groth16 gateway instead.
type Permissive struct{}

func (Permissive) Name() string { return "permissive" }

func (Permissive) Verify(_ context.Context, _ domain.Task, sub Submission) (bool, error) {
	if len(sub.Proof) == 0 {
		return false, domain.ErrEmptyProof
	}
	return true, nil
}
