package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGraphSweep walks the item graph and reports dangling child edges.
	TaskGraphSweep = "authz:graph_sweep"
	// TaskCacheWarmup precomputes resolved closures into the shared cache.
	TaskCacheWarmup = "authz:cache_warmup"
)

// GraphSweepPayload configures a graph integrity sweep.
type GraphSweepPayload struct {
	// IncludeCycles also reports roles reachable from themselves.
	IncludeCycles bool `json:"include_cycles"`
}

// NewGraphSweepTask constructs an Asynq task.
func NewGraphSweepTask(payload GraphSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGraphSweep, data), nil
}

// CacheWarmupPayload configures a warmup run. An empty Users slice warms
// every known user.
type CacheWarmupPayload struct {
	Users []string `json:"users,omitempty"`
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}
