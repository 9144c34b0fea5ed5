package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/ports/primary"
)

// Schedule creates a task of a pipeline type on a cron expression.
type Schedule struct {
	Name         string
	Cron         string
	PipelineType string
	Params       map[string]any
}

// Scheduler creates tasks from cron schedules.
type Scheduler struct {
	ctx    context.Context
	tasks  primary.TaskService
	cron   *gocron.Scheduler
	logger *zap.Logger
}

// NewScheduler registers every schedule. It fails on the first invalid cron expression.
func NewScheduler(ctx context.Context, tasks primary.TaskService, schedules []Schedule, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		ctx:    ctx,
		tasks:  tasks,
		cron:   gocron.NewScheduler(time.UTC),
		logger: logger,
	}

	for _, sched := range schedules {
		logger.Info("scheduling pipeline", zap.String("name", sched.Name), zap.String("cron", sched.Cron),
			zap.String("pipeline_type", sched.PipelineType))
		if _, err := s.cron.Cron(sched.Cron).Tag(sched.Name).Do(s.trigger, sched); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", sched.Name, err)
		}
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int {
	return s.cron.Len()
}

func (s *Scheduler) trigger(sched Schedule) {
	params := make(map[string]any, len(sched.Params))
	for k, v := range sched.Params {
		params[k] = v
	}
	resp, err := s.tasks.CreateTask(s.ctx, primary.CreateTaskRequest{
		PipelineType: sched.PipelineType,
		Params:       params,
	})
	if err != nil {
		s.logger.Error("scheduled task not created", zap.String("name", sched.Name), zap.Error(err))
		return
	}
	s.logger.Info("scheduled task created", zap.String("name", sched.Name), zap.String("task_id", resp.TaskID))
}
