package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/core/publish"
	"github.com/example/reelforge/internal/ports/primary"
	"github.com/example/reelforge/internal/ports/secondary"
)

// PublishServiceImpl implements the PublishService interface.
type PublishServiceImpl struct {
	taskRepo    secondary.TaskRepository
	publishRepo secondary.PublishRepository
	uploader    secondary.Uploader
	logWriter   secondary.LogWriter
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string

	mu         sync.RWMutex
	dispatcher secondary.UploadDispatcher
}

// NewPublishService creates a new PublishService with injected dependencies.
// logWriter may be nil.
func NewPublishService(
	taskRepo secondary.TaskRepository,
	publishRepo secondary.PublishRepository,
	uploader secondary.Uploader,
	logWriter secondary.LogWriter,
	logger *zap.Logger,
) *PublishServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishServiceImpl{
		taskRepo:    taskRepo,
		publishRepo: publishRepo,
		uploader:    uploader,
		logWriter:   logWriter,
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// SetDispatcher sets where pending records are handed for upload.
// Without a dispatcher records stay pending until processed explicitly.
func (s *PublishServiceImpl) SetDispatcher(d secondary.UploadDispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// FanOut creates one pending record per account that has none yet for the
// task and dispatches them. It returns the task's records for the requested
// accounts, in request order.
func (s *PublishServiceImpl) FanOut(ctx context.Context, req primary.FanOutRequest) ([]*primary.PublishRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", primary.ErrInvalidRequest, err)
	}

	task, err := s.taskRepo.GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	accounts := publish.UniqueAccounts(req.AccountIDs)
	guard := pipeline.CanPublishTask(pipeline.StatusContext{
		TaskID: task.ID,
		Status: pipeline.TaskStatus(task.Status),
	}, len(accounts))
	if !guard.Allowed {
		return nil, guard.Error()
	}

	pctx, err := recordToContext(task)
	if err != nil {
		return nil, err
	}
	content, err := publishContent(pctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.publishRepo.ListByTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish records: %w", err)
	}
	byAccount := make(map[string]*secondary.PublishRecord, len(existing))
	for _, r := range existing {
		byAccount[r.AccountID] = r
	}

	created := make([]*secondary.PublishRecord, 0, len(accounts))
	now := s.now().UTC()
	for _, acc := range accounts {
		if _, ok := byAccount[acc]; ok {
			continue
		}
		rec := &secondary.PublishRecord{
			ID:          s.newID(),
			TaskID:      task.ID,
			AccountID:   acc,
			Status:      string(publish.StatusPending),
			Title:       content.Title,
			Description: content.Description,
			ContentPath: content.ContentPath,
			CreatedAt:   now,
		}
		created = append(created, rec)
		byAccount[acc] = rec
	}

	if len(created) > 0 {
		if err := s.publishRepo.CreateBatch(ctx, created); err != nil {
			return nil, fmt.Errorf("failed to create publish records: %w", err)
		}
		ids := make([]string, len(created))
		for i, r := range created {
			ids[i] = r.ID
			s.audit(ctx, func(w secondary.LogWriter) error { return w.LogCreate(ctx, "publish", r.ID) })
		}
		s.logger.Info("publish fan-out", zap.String("task_id", task.ID), zap.Int("accounts", len(ids)))
		s.dispatch(ctx, ids)
	}

	out := make([]*primary.PublishRecord, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, recordToPublish(byAccount[acc]))
	}
	return out, nil
}

// GetPublishStatus recomputes the status distribution from live records.
func (s *PublishServiceImpl) GetPublishStatus(ctx context.Context, taskID string) (*primary.PublishStatus, error) {
	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	records, err := s.publishRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list publish records: %w", err)
	}

	counts := countRecords(records)
	status := &primary.PublishStatus{
		TaskID:            taskID,
		Counts:            *toCounts(counts),
		Summary:           publish.Summary(counts),
		PublishedAccounts: make([]*primary.PublishRecord, 0, len(records)),
	}
	for _, r := range records {
		status.PublishedAccounts = append(status.PublishedAccounts, recordToPublish(r))
	}
	return status, nil
}

// RetryPublish moves a failed or cancelled record back to pending and dispatches it.
func (s *PublishServiceImpl) RetryPublish(ctx context.Context, publishID string) (*primary.PublishActionResponse, error) {
	record, err := s.publishRepo.GetByID(ctx, publishID)
	if err != nil {
		return nil, err
	}

	guard := publish.CanRetry(publish.TransitionContext{PublishID: publishID, Status: publish.Status(record.Status)})
	if !guard.Allowed {
		return nil, guard.Error()
	}

	if err := s.transition(ctx, record, publish.StatusPending, "", ""); err != nil {
		return nil, err
	}
	s.dispatch(ctx, []string{publishID})

	return &primary.PublishActionResponse{
		Message:   fmt.Sprintf("publish to %s queued for retry", record.AccountID),
		PublishID: publishID,
	}, nil
}

// CancelPublish cancels a pending or uploading record. An upload already in
// progress is not interrupted; its result is discarded.
func (s *PublishServiceImpl) CancelPublish(ctx context.Context, publishID string) (*primary.PublishActionResponse, error) {
	record, err := s.publishRepo.GetByID(ctx, publishID)
	if err != nil {
		return nil, err
	}

	guard := publish.CanCancel(publish.TransitionContext{PublishID: publishID, Status: publish.Status(record.Status)})
	if !guard.Allowed {
		return nil, guard.Error()
	}

	if err := s.transition(ctx, record, publish.StatusCancelled, "", "cancelled by request"); err != nil {
		return nil, err
	}

	return &primary.PublishActionResponse{
		Message:   fmt.Sprintf("publish to %s cancelled", record.AccountID),
		PublishID: publishID,
	}, nil
}

// DeletePublish removes a single record. Sibling records are untouched.
func (s *PublishServiceImpl) DeletePublish(ctx context.Context, publishID string) (*primary.PublishActionResponse, error) {
	record, err := s.publishRepo.GetByID(ctx, publishID)
	if err != nil {
		return nil, err
	}
	if err := s.publishRepo.Delete(ctx, publishID); err != nil {
		return nil, err
	}
	s.audit(ctx, func(w secondary.LogWriter) error { return w.LogDelete(ctx, "publish", publishID) })

	return &primary.PublishActionResponse{
		Message:   fmt.Sprintf("publish record for %s deleted", record.AccountID),
		PublishID: publishID,
	}, nil
}

// ProcessUpload drives one pending record through its upload. The returned
// error is a *publish.PublishFailure when the upload itself failed; the
// failure is stored on the record first.
func (s *PublishServiceImpl) ProcessUpload(ctx context.Context, publishID string) error {
	record, err := s.publishRepo.GetByID(ctx, publishID)
	if err != nil {
		return err
	}

	guard := publish.CanStartUpload(publish.TransitionContext{PublishID: publishID, Status: publish.Status(record.Status)})
	if !guard.Allowed {
		return guard.Error()
	}
	if err := s.transition(ctx, record, publish.StatusUploading, "", ""); err != nil {
		return err
	}
	record.Status = string(publish.StatusUploading)

	logger := s.logger.With(zap.String("publish_id", publishID), zap.String("account_id", record.AccountID))
	result, uploadErr := s.uploader.Upload(ctx, secondary.UploadRequest{
		PublishID:   publishID,
		AccountID:   record.AccountID,
		Title:       record.Title,
		Description: record.Description,
		ContentPath: record.ContentPath,
	})

	// The record may have been cancelled meanwhile; the result is then discarded.
	finishCtx := context.WithoutCancel(ctx)
	if uploadErr != nil {
		failure := &publish.PublishFailure{PublishID: publishID, AccountID: record.AccountID, Err: uploadErr}
		err := s.finishUpload(finishCtx, record, publish.StatusFailed, "", uploadErr.Error())
		if errors.Is(err, secondary.ErrStaleStatus) {
			logger.Info("discarding upload failure of cancelled record", zap.Error(uploadErr))
			return nil
		}
		if err != nil {
			return err
		}
		logger.Warn("upload failed", zap.Error(uploadErr))
		return failure
	}

	url := ""
	if result != nil {
		url = result.URL
	}
	err = s.finishUpload(finishCtx, record, publish.StatusSuccess, url, "")
	if errors.Is(err, secondary.ErrStaleStatus) {
		logger.Info("discarding upload result of cancelled record", zap.String("url", url))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("upload succeeded", zap.String("url", url))
	return nil
}

// finishUpload records the outcome of an upload started by this worker.
func (s *PublishServiceImpl) finishUpload(ctx context.Context, record *secondary.PublishRecord, outcome publish.Status, resultURL, errMsg string) error {
	guard := publish.CanFinishUpload(publish.TransitionContext{PublishID: record.ID, Status: publish.Status(record.Status)}, outcome)
	if !guard.Allowed {
		return guard.Error()
	}
	return s.transition(ctx, record, outcome, resultURL, errMsg)
}

// transition applies a guarded compare-and-set status change.
func (s *PublishServiceImpl) transition(ctx context.Context, record *secondary.PublishRecord, to publish.Status, resultURL, errMsg string) error {
	from := publish.Status(record.Status)
	if !publish.CanTransition(from, to) {
		return fmt.Errorf("%w: publish %s cannot move from %s to %s", publish.ErrInvalidTransition, record.ID, from, to)
	}

	update := secondary.PublishStatusUpdate{
		ID:           record.ID,
		From:         string(from),
		To:           string(to),
		ResultURL:    resultURL,
		ErrorMessage: errMsg,
	}
	if to == publish.StatusSuccess {
		now := s.now().UTC()
		update.PublishedAt = &now
	}
	if err := s.publishRepo.UpdateStatus(ctx, update); err != nil {
		if errors.Is(err, secondary.ErrStaleStatus) {
			return fmt.Errorf("%w: publish %s is no longer %s: %w", publish.ErrInvalidTransition, record.ID, from, err)
		}
		return err
	}

	s.audit(ctx, func(w secondary.LogWriter) error {
		return w.LogUpdate(ctx, "publish", record.ID, "status", string(from), string(to))
	})
	return nil
}

func (s *PublishServiceImpl) dispatch(ctx context.Context, ids []string) {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d == nil {
		return
	}
	if err := d.Dispatch(ctx, ids); err != nil {
		s.logger.Error("failed to dispatch uploads, records stay pending", zap.Strings("publish_ids", ids), zap.Error(err))
	}
}

func (s *PublishServiceImpl) audit(ctx context.Context, write func(secondary.LogWriter) error) {
	if s.logWriter == nil {
		return
	}
	if err := write(s.logWriter); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err))
	}
}

// Helper functions

type uploadContent struct {
	Title       string
	Description string
	ContentPath string
}

// publishContent takes the shared upload fields from the task result.
func publishContent(pctx *pipeline.Context) (uploadContent, error) {
	var c uploadContent
	story, _ := pctx.Outputs.Get(pipeline.StageStory)
	video, _ := pctx.Outputs.Get(pipeline.StageVideo)

	c.Title = firstString(story["title"], pctx.Params[ParamTitle], video["title"])
	c.Description = firstString(story["description"], story["summary"])

	export, _ := pctx.Outputs.Get(pipeline.StageExport)
	draft, _ := pctx.Outputs.Get(pipeline.StageDraft)
	c.ContentPath = firstString(export["video_path"], draft["draft_path"])
	if c.ContentPath == "" {
		return c, fmt.Errorf("%w: task %s has no exported video or draft to publish", pipeline.ErrInvalidTransition, pctx.TaskID)
	}
	return c, nil
}

func firstString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func countRecords(records []*secondary.PublishRecord) publish.StatusCount {
	statuses := make([]publish.Status, len(records))
	for i, r := range records {
		statuses[i] = publish.Status(r.Status)
	}
	return publish.CountStatuses(statuses)
}

func toCounts(c publish.StatusCount) *primary.PublishStatusCounts {
	return &primary.PublishStatusCounts{
		Total:     c.Total,
		Success:   c.Success,
		Pending:   c.Pending,
		Uploading: c.Uploading,
		Failed:    c.Failed,
		Cancelled: c.Cancelled,
	}
}

func recordToPublish(r *secondary.PublishRecord) *primary.PublishRecord {
	return &primary.PublishRecord{
		PublishID:    r.ID,
		TaskID:       r.TaskID,
		AccountID:    r.AccountID,
		Status:       r.Status,
		Title:        r.Title,
		ContentPath:  r.ContentPath,
		ResultURL:    r.ResultURL,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		PublishedAt:  r.PublishedAt,
	}
}

// Ensure PublishServiceImpl implements the interface
var _ primary.PublishService = (*PublishServiceImpl)(nil)
