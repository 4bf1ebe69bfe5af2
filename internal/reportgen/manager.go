package reportgen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/llm"
)

// Manager runs report generation jobs in the background with bounded concurrency.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(ctx context.Context, reportID int64) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context, reportID int64) error
}

// Store is the slice of report persistence the manager needs.
type Store interface {
	Get(ctx context.Context, id int64) (*domain.Report, error)
	ListByStatuses(ctx context.Context, statuses ...domain.ReportStatus) ([]domain.Report, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ReportStatus, errorMessage *string) error
	SaveGenerated(ctx context.Context, id int64, summary string, sections []domain.ReportSection) error
}

var ErrNotStarted = errors.New("report manager not started")

type Config struct {
	MaxConcurrent int
	Logger        logrus.FieldLogger
}

type manager struct {
	cfg       Config
	store     Store
	generator llm.ReportGenerator

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[int64]*jobHandle
}

type jobHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	// requeue is set when the report is enqueued again while this job is
	// still registered; guarded by manager.mu.
	requeue bool
}

func NewManager(cfg Config, store Store, generator llm.ReportGenerator) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:       cfg,
		store:     store,
		generator: generator,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		active:    make(map[int64]*jobHandle),
	}
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return fmt.Errorf("report manager already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("report manager started, max concurrent: %d", m.cfg.MaxConcurrent)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("report manager stopped")
}

func (m *manager) Enqueue(ctx context.Context, reportID int64) error {
	rep, err := m.store.Get(ctx, reportID)
	if err != nil {
		return err
	}
	return m.spawnJob(rep.ID)
}

// Resume re-queues reports left pending or interrupted mid-generation.
func (m *manager) Resume(ctx context.Context) error {
	reports, err := m.store.ListByStatuses(ctx,
		domain.ReportStatusPending,
		domain.ReportStatusGenerating,
	)
	if err != nil {
		return err
	}

	for i := range reports {
		if err := m.spawnJob(reports[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *manager) spawnJob(id int64) error {
	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if handle, running := m.active[id]; running {
		handle.requeue = true
		m.mu.Unlock()
		return nil
	}
	jobCtx, cancel := context.WithCancel(m.ctx)
	handle := &jobHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.active[id] = handle
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			requeue := m.unregisterJob(id, handle)
			cancel()
			close(handle.done)
			if requeue && m.ctx.Err() == nil {
				if err := m.spawnJob(id); err != nil {
					m.cfg.Logger.WithField("report_id", id).Errorf("requeue report: %v", err)
				}
			}
		}()
		select {
		case <-jobCtx.Done():
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			m.handleReport(jobCtx, id)
		}
	}()
	return nil
}

// unregisterJob removes handle and reports whether another run was requested
// while it was registered.
func (m *manager) unregisterJob(id int64, handle *jobHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[id] != handle {
		return false
	}
	delete(m.active, id)
	return handle.requeue
}

// Cancel stops a queued or running job and waits for it to exit.
func (m *manager) Cancel(ctx context.Context, reportID int64) error {
	m.mu.Lock()
	handle, ok := m.active[reportID]
	if ok {
		handle.requeue = false
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	handle.cancel()

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *manager) handleReport(ctx context.Context, id int64) {
	logger := m.cfg.Logger.WithField("report_id", id)

	rep, err := m.store.Get(ctx, id)
	if err != nil {
		logger.Errorf("load report: %v", err)
		return
	}
	switch rep.Status {
	case domain.ReportStatusReady, domain.ReportStatusPublished:
		logger.Debug("report already generated, skipping")
		return
	}

	if err := m.store.UpdateStatus(ctx, id, domain.ReportStatusGenerating, nil); err != nil {
		logger.Errorf("update status failed: %v", err)
		return
	}
	logger.Info("report generation started")

	generated, err := m.generator.GenerateReport(ctx, rep.SourceText)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("report generation cancelled")
			return
		}
		m.failReport(ctx, id, fmt.Errorf("generate: %w", err))
		return
	}

	if err := m.store.SaveGenerated(ctx, id, generated.Summary, generated.Sections); err != nil {
		m.failReport(ctx, id, fmt.Errorf("save generated report: %w", err))
		return
	}
	logger.Infof("report generated with %d sections", len(generated.Sections))
}

func (m *manager) failReport(ctx context.Context, reportID int64, failErr error) {
	msg := failErr.Error()
	if err := m.store.UpdateStatus(ctx, reportID, domain.ReportStatusFailed, &msg); err != nil {
		m.cfg.Logger.WithField("report_id", reportID).Errorf("persist failure status: %v", err)
	}
	m.cfg.Logger.WithField("report_id", reportID).Error(msg)
}

var _ Manager = (*manager)(nil)
