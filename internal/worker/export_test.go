package worker

import (
	"context"

	"github.com/google/uuid"
)

// RunJobForTest exposes runJob to external tests in package worker_test,
// which otherwise cannot reach unexported methods on Pool.
func RunJobForTest(p *Pool, jobID uuid.UUID) error {
	return p.runJob(context.Background(), jobID)
}
