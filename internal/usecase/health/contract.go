package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// QueueChecker reports remaining capacity of the lookup queue.
type QueueChecker interface {
	QueueHeadroom() int
}
