package port

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/videorag/videorag-indexing-service/internal/domain/entity"
)

// ErrJobNotFound distinguishes a missing job row from infrastructure
// failures, so callers can decide between creating the job and bailing out.
var ErrJobNotFound = errors.New("job not found")

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Update(ctx context.Context, job *entity.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, limit int) ([]*entity.Job, error)
}
