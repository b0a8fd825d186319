package autopark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
)

// TaskSweep is the asynq task type for a sweep.
const TaskSweep = "autopark:sweep"

// SweepPayload is the task payload.
type SweepPayload struct {
	DryRun bool `json:"dry_run"`
}

// NewSweepTask builds a sweep task.
func NewSweepTask(dryRun bool) (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{DryRun: dryRun})
	if err != nil {
		return nil, eris.Wrap(err, "autopark: marshal sweep payload")
	}
	return asynq.NewTask(TaskSweep, data), nil
}

// ParseSweepPayload decodes a sweep task payload. An empty payload is a
// normal sweep.
func ParseSweepPayload(task *asynq.Task) (SweepPayload, error) {
	var p SweepPayload
	if len(task.Payload()) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return SweepPayload{}, eris.Wrap(err, "autopark: unmarshal sweep payload")
	}
	return p, nil
}

// HandleSweepTask is the asynq handler for TaskSweep.
func (s *Sweeper) HandleSweepTask(ctx context.Context, task *asynq.Task) error {
	p, err := ParseSweepPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err = s.Sweep(ctx, p.DryRun)
	return err
}

// RedisClientOpt converts a redis:// URL into asynq connection options.
func RedisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, eris.New("autopark: scheduler redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, eris.Wrap(err, "autopark: parse redis url")
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// RegisterSchedule adds the periodic sweep to scheduler and returns the
// entry ID.
func RegisterSchedule(scheduler *asynq.Scheduler, cronspec, queue string) (string, error) {
	task, err := NewSweepTask(false)
	if err != nil {
		return "", err
	}
	if queue == "" {
		queue = "default"
	}
	id, err := scheduler.Register(cronspec, task, asynq.Queue(queue))
	if err != nil {
		return "", eris.Wrapf(err, "autopark: register schedule %q", cronspec)
	}
	return id, nil
}

// Worker runs the asynq server that executes sweeps and the scheduler that
// enqueues them.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

// NewWorker wires a sweeper into an asynq server and scheduler.
func NewWorker(scfg config.SchedulerConfig, acfg config.AutoParkConfig, sw *Sweeper) (*Worker, error) {
	opt, err := RedisClientOpt(scfg.RedisURL)
	if err != nil {
		return nil, err
	}

	queue := scfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := scfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSweep, sw.HandleSweepTask)

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})
	cronspec := acfg.Cron
	if cronspec == "" {
		cronspec = "0 2 * * *"
	}
	id, err := RegisterSchedule(scheduler, cronspec, queue)
	if err != nil {
		return nil, err
	}
	zap.L().Info("autopark: sweep scheduled", zap.String("cron", cronspec), zap.String("entry_id", id))

	return &Worker{server: server, scheduler: scheduler, mux: mux}, nil
}

// Run starts the scheduler and server and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.scheduler.Start(); err != nil {
		return eris.Wrap(err, "autopark: start scheduler")
	}
	defer w.scheduler.Shutdown()

	if err := w.server.Start(w.mux); err != nil {
		return eris.Wrap(err, "autopark: start worker")
	}
	<-ctx.Done()
	w.server.Shutdown()
	zap.L().Info("autopark: worker stopped")
	return nil
}

// Enqueue submits a one-off sweep to the queue.
func Enqueue(ctx context.Context, scfg config.SchedulerConfig, dryRun bool) (*asynq.TaskInfo, error) {
	opt, err := RedisClientOpt(scfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := asynq.NewClient(opt)
	defer client.Close() //nolint:errcheck

	task, err := NewSweepTask(dryRun)
	if err != nil {
		return nil, err
	}
	queue := scfg.Queue
	if queue == "" {
		queue = "default"
	}
	info, err := client.EnqueueContext(ctx, task, asynq.Queue(queue))
	if err != nil {
		return nil, eris.Wrap(err, "autopark: enqueue sweep")
	}
	return info, nil
}
