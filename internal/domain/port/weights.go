package port

import "context"

// WeightsProvider makes model weights available on local disk, fetching them
// from remote hosting only when absent. Failure is fatal to detection.
type WeightsProvider interface {
	Ensure(ctx context.Context, name string) (string, error)
}
