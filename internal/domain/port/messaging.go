package port

import "context"

// IndexJobPublisher enqueues a video for background indexing.
type IndexJobPublisher interface {
	PublishIndexJob(ctx context.Context, msg []byte) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
