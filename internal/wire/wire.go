// Package wire provides dependency injection for the reelforge application.
// A Container owns every long-lived component built from one Settings value.
package wire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	cliadapter "github.com/example/reelforge/internal/adapters/cli"
	"github.com/example/reelforge/internal/adapters/external"
	"github.com/example/reelforge/internal/adapters/filesystem"
	"github.com/example/reelforge/internal/adapters/httpapi"
	"github.com/example/reelforge/internal/adapters/queue"
	"github.com/example/reelforge/internal/adapters/sqlite"
	"github.com/example/reelforge/internal/app"
	"github.com/example/reelforge/internal/config"
	"github.com/example/reelforge/internal/core/acquisition"
	"github.com/example/reelforge/internal/db"
	"github.com/example/reelforge/internal/ports/primary"
)

// Container holds the wired services.
type Container struct {
	Settings  *config.Settings
	Logger    *zap.Logger
	Tasks     *app.TaskServiceImpl
	Publish   *app.PublishServiceImpl
	Logs      *app.LogServiceImpl
	Pipelines *config.PipelineFile

	database   *sql.DB
	checker    *app.CacheChecker
	pool       *app.UploadPool
	dispatcher *queue.Dispatcher
}

// New builds every component. Uploads dispatched by the pool run under ctx.
func New(ctx context.Context, settings *config.Settings, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pipelines, err := config.LoadPipelines(settings.PipelinesFile)
	if err != nil {
		return nil, err
	}
	built, err := pipelines.Build()
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]app.PipelineProfile, len(built))
	for name, p := range built {
		profiles[name] = app.PipelineProfile{Definition: p.Definition, FetchConfig: p.FetchConfig}
	}

	database, err := db.Open(settings.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Container{Settings: settings, Logger: logger, Pipelines: pipelines, database: database}
	if err := c.build(ctx, app.NewCatalog(profiles)); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, catalog *app.Catalog) error {
	s := c.Settings

	// Secondary adapters
	taskRepo := sqlite.NewTaskRepository(c.database)
	publishRepo := sqlite.NewPublishRepository(c.database)
	logWriter := sqlite.NewLogWriterAdapter(c.database)

	store, err := filesystem.NewArtifactStore(s.ArtifactRoot)
	if err != nil {
		return err
	}

	client := external.NewClient(external.ClientConfig{
		Timeout:      s.External.Timeout,
		Retries:      s.External.Retries,
		RetryBackoff: s.External.RetryBackoff,
	}, c.Logger.Named("external"))
	discovery := external.NewContentDiscovery(client, s.External.DiscoveryURL)
	backend := external.NewStageBackend(client, s.External.Stages)
	uploader := external.NewUploader(client, s.External.UploadURL)

	// Pipeline
	c.checker, err = app.NewCacheChecker(store, app.CacheCheckerConfig{
		Policy:         acquisition.MatchPolicy(s.Cache.Policy),
		ForceReprocess: s.Cache.ForceReprocess,
		Locations:      s.Cache.Locations,
	}, c.Logger.Named("cache"))
	if err != nil {
		return err
	}
	acquirer := app.NewAcquisitionService(discovery, c.checker, c.Logger.Named("acquisition"))
	executor := app.NewPipelineExecutor(app.NewStageRegistry(acquirer, backend), c.Logger.Named("executor"))

	// Services
	c.Publish = app.NewPublishService(taskRepo, publishRepo, uploader, logWriter, c.Logger.Named("publish"))
	c.Tasks = app.NewTaskService(taskRepo, publishRepo, catalog, executor, c.Publish, logWriter, c.Logger.Named("tasks"))
	c.Logs = app.NewLogService(logWriter)

	if s.UsesAsynq() {
		c.dispatcher = queue.NewDispatcher(c.redisOpt(), queue.DispatcherOptions{
			Queue:   s.Queue.Name,
			Timeout: s.Queue.UploadTimeout,
		})
		c.Publish.SetDispatcher(c.dispatcher)
	} else {
		c.pool = app.NewUploadPool(ctx, c.Publish, s.Queue.Concurrency, c.Logger.Named("uploads"))
		c.Publish.SetDispatcher(c.pool)
	}
	return nil
}

func (c *Container) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Settings.Queue.RedisAddr,
		Password: c.Settings.Queue.RedisPassword,
		DB:       c.Settings.Queue.RedisDB,
	}
}

// Schedules returns the configured cron schedules.
func (c *Container) Schedules() []app.Schedule {
	out := make([]app.Schedule, 0, len(c.Pipelines.Schedules))
	for _, s := range c.Pipelines.Schedules {
		out = append(out, app.Schedule{Name: s.Name, Cron: s.Cron, PipelineType: s.PipelineType, Params: s.Params})
	}
	return out
}

// NewScheduler registers the configured schedules against the task service.
func (c *Container) NewScheduler(ctx context.Context) (*app.Scheduler, error) {
	return app.NewScheduler(ctx, c.Tasks, c.Schedules(), c.Logger.Named("scheduler"))
}

// NewHTTPServer returns the JSON API over the wired services.
func (c *Container) NewHTTPServer() *httpapi.Server {
	h := c.Settings.HTTP
	return httpapi.NewServer(c.Tasks, c.Publish, c.Logs, httpapi.Config{
		Addr:             h.Addr,
		Mode:             h.Mode,
		RequestSizeLimit: h.RequestSizeLimit,
		ShutdownTimeout:  h.ShutdownTimeout,
	}, c.Logger.Named("http"))
}

// NewWorker returns an asynq worker processing uploads. It requires the asynq dispatcher.
func (c *Container) NewWorker() (*queue.Worker, error) {
	if !c.Settings.UsesAsynq() {
		return nil, fmt.Errorf("worker requires queue.dispatcher=%s (got %s)", config.DispatchAsynq, c.Settings.Queue.Dispatcher)
	}
	return queue.NewWorker(c.redisOpt(), c.Publish, queue.WorkerConfig{
		Concurrency: c.Settings.Queue.Concurrency,
		Queue:       c.Settings.Queue.Name,
	}, c.Logger.Named("worker")), nil
}

// Wait blocks until background task runs and in-process uploads finish.
func (c *Container) Wait() {
	c.Tasks.Wait()
	if c.pool != nil {
		c.pool.Wait()
	}
}

// Close releases the queue client, the cache memo and the database.
func (c *Container) Close() error {
	var errs []error
	if c.dispatcher != nil {
		errs = append(errs, c.dispatcher.Close())
	}
	if c.checker != nil {
		c.checker.Close()
	}
	if c.database != nil {
		errs = append(errs, c.database.Close())
	}
	return errors.Join(errs...)
}

// TaskAdapter returns a new TaskAdapter writing to stdout.
func (c *Container) TaskAdapter() *cliadapter.TaskAdapter {
	return c.TaskAdapterWithOutput(os.Stdout)
}

// TaskAdapterWithOutput returns a new TaskAdapter writing to the given output.
func (c *Container) TaskAdapterWithOutput(out io.Writer) *cliadapter.TaskAdapter {
	return cliadapter.NewTaskAdapter(c.Tasks, out)
}

// PublishAdapter returns a new PublishAdapter writing to stdout.
func (c *Container) PublishAdapter() *cliadapter.PublishAdapter {
	return c.PublishAdapterWithOutput(os.Stdout)
}

// PublishAdapterWithOutput returns a new PublishAdapter writing to the given output.
func (c *Container) PublishAdapterWithOutput(out io.Writer) *cliadapter.PublishAdapter {
	return cliadapter.NewPublishAdapter(c.Publish, out)
}

// LogAdapter returns a new LogAdapter writing to stdout.
func (c *Container) LogAdapter() *cliadapter.LogAdapter {
	return cliadapter.NewLogAdapter(c.Logs, os.Stdout)
}

var (
	_ primary.TaskService    = (*app.TaskServiceImpl)(nil)
	_ primary.PublishService = (*app.PublishServiceImpl)(nil)
	_ primary.LogService     = (*app.LogServiceImpl)(nil)
)
