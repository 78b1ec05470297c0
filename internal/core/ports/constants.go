package ports

import "time"

const (
	DefaultFeedCapacity      = 100                    // Maximum entries kept in the live feed
	DefaultBootstrapDepth    = 2                      // Blocks before head processed on the first poll
	DefaultBatchSize         = 5                      // Hashes enriched concurrently per batch
	DefaultBatchDelay        = 100 * time.Millisecond // Pause between batches of one block
	DefaultPollInterval      = 2 * time.Second        // Head polling period
	DefaultRequestTimeout    = 10 * time.Second       // Per upstream call
	DefaultBroadcastInterval = time.Second            // Minimum gap between WebSocket pushes
)
