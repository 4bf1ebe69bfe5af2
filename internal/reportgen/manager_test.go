package reportgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/llm"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

type memoryStore struct {
	mu      sync.Mutex
	reports map[int64]*domain.Report
}

func newMemoryStore(reports ...domain.Report) *memoryStore {
	s := &memoryStore{reports: map[int64]*domain.Report{}}
	for i := range reports {
		r := reports[i]
		s.reports[r.ID] = &r
	}
	return s
}

func (s *memoryStore) Get(_ context.Context, id int64) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) ListByStatuses(_ context.Context, statuses ...domain.ReportStatus) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Report
	for _, r := range s.reports {
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id int64, status domain.ReportStatus, msg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	r.ErrorMessage = ""
	if msg != nil {
		r.ErrorMessage = *msg
	}
	return nil
}

func (s *memoryStore) SaveGenerated(_ context.Context, id int64, summary string, sections []domain.ReportSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = domain.ReportStatusReady
	r.Summary = summary
	r.Sections = sections
	return nil
}

func (s *memoryStore) status(id int64) domain.ReportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[id].Status
}

type generatorFunc func(ctx context.Context, text string) (*llm.GeneratedReport, error)

func (f generatorFunc) GenerateReport(ctx context.Context, text string) (*llm.GeneratedReport, error) {
	return f(ctx, text)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startManager(t *testing.T, store Store, gen llm.ReportGenerator, maxConcurrent int) Manager {
	t.Helper()
	m := NewManager(Config{MaxConcurrent: maxConcurrent, Logger: quietLogger()}, store, gen)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(m.Shutdown)
	return m
}

func TestEnqueueGeneratesReport(t *testing.T) {
	store := newMemoryStore(domain.Report{ID: 1, Status: domain.ReportStatusPending, SourceText: "texto"})
	gen := generatorFunc(func(_ context.Context, text string) (*llm.GeneratedReport, error) {
		if text != "texto" {
			return nil, fmt.Errorf("unexpected text %q", text)
		}
		return &llm.GeneratedReport{Summary: "resumo", Sections: []domain.ReportSection{{Title: "Macro"}}}, nil
	})
	m := startManager(t, store, gen, 1)

	if err := m.Enqueue(context.Background(), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, func() bool { return store.status(1) == domain.ReportStatusReady })

	rep, _ := store.Get(context.Background(), 1)
	if rep.Summary != "resumo" || len(rep.Sections) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestEnqueueMarksFailure(t *testing.T) {
	store := newMemoryStore(domain.Report{ID: 7, Status: domain.ReportStatusPending, SourceText: "x"})
	gen := generatorFunc(func(context.Context, string) (*llm.GeneratedReport, error) {
		return nil, errors.New("model unavailable")
	})
	m := startManager(t, store, gen, 1)

	if err := m.Enqueue(context.Background(), 7); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, func() bool { return store.status(7) == domain.ReportStatusFailed })

	rep, _ := store.Get(context.Background(), 7)
	if rep.ErrorMessage != "generate: model unavailable" {
		t.Fatalf("error message = %q", rep.ErrorMessage)
	}
}

// failGate holds the job inside its failure write so a regeneration can be
// enqueued while the finished job is still registered.
type failGate struct {
	*memoryStore
	once    sync.Once
	failed  chan struct{}
	release chan struct{}
}

func (g *failGate) UpdateStatus(ctx context.Context, id int64, status domain.ReportStatus, msg *string) error {
	err := g.memoryStore.UpdateStatus(ctx, id, status, msg)
	if status == domain.ReportStatusFailed {
		g.once.Do(func() {
			close(g.failed)
			<-g.release
		})
	}
	return err
}

func TestRegenerateRightAfterFailureRunsAgain(t *testing.T) {
	inner := newMemoryStore(domain.Report{ID: 3, Status: domain.ReportStatusPending, SourceText: "x"})
	store := &failGate{memoryStore: inner, failed: make(chan struct{}), release: make(chan struct{})}
	var calls int32
	gen := generatorFunc(func(context.Context, string) (*llm.GeneratedReport, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("model unavailable")
		}
		return &llm.GeneratedReport{Summary: "ok"}, nil
	})
	m := startManager(t, store, gen, 1)

	if err := m.Enqueue(context.Background(), 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-store.failed

	if err := inner.UpdateStatus(context.Background(), 3, domain.ReportStatusPending, nil); err != nil {
		t.Fatalf("reset status: %v", err)
	}
	if err := m.Enqueue(context.Background(), 3); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	close(store.release)

	waitFor(t, func() bool { return inner.status(3) == domain.ReportStatusReady })
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("generator calls = %d", got)
	}
}

func TestEnqueueUnknownReport(t *testing.T) {
	m := startManager(t, newMemoryStore(), generatorFunc(nil), 1)
	if err := m.Enqueue(context.Background(), 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnqueueBeforeStart(t *testing.T) {
	store := newMemoryStore(domain.Report{ID: 1, Status: domain.ReportStatusPending})
	m := NewManager(Config{Logger: quietLogger()}, store, generatorFunc(nil))
	if err := m.Enqueue(context.Background(), 1); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("err = %v", err)
	}
}

func TestResumeRequeuesUnfinishedReports(t *testing.T) {
	store := newMemoryStore(
		domain.Report{ID: 1, Status: domain.ReportStatusPending, SourceText: "a"},
		domain.Report{ID: 2, Status: domain.ReportStatusGenerating, SourceText: "b"},
		domain.Report{ID: 3, Status: domain.ReportStatusPublished, SourceText: "c"},
	)
	var calls int32
	gen := generatorFunc(func(context.Context, string) (*llm.GeneratedReport, error) {
		atomic.AddInt32(&calls, 1)
		return &llm.GeneratedReport{Summary: "ok"}, nil
	})
	m := startManager(t, store, gen, 2)

	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitFor(t, func() bool {
		return store.status(1) == domain.ReportStatusReady && store.status(2) == domain.ReportStatusReady
	})
	if store.status(3) != domain.ReportStatusPublished {
		t.Fatalf("published report touched: %s", store.status(3))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("generator calls = %d", got)
	}
}

func TestCancelStopsRunningJob(t *testing.T) {
	store := newMemoryStore(domain.Report{ID: 1, Status: domain.ReportStatusPending, SourceText: "x"})
	started := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, _ string) (*llm.GeneratedReport, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := startManager(t, store, gen, 1)

	if err := m.Enqueue(context.Background(), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Cancel(ctx, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := store.status(1); got != domain.ReportStatusGenerating {
		t.Fatalf("status after cancel = %s", got)
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	var reports []domain.Report
	for i := int64(1); i <= 6; i++ {
		reports = append(reports, domain.Report{ID: i, Status: domain.ReportStatusPending, SourceText: "x"})
	}
	store := newMemoryStore(reports...)

	var inFlight, peak int32
	gen := generatorFunc(func(context.Context, string) (*llm.GeneratedReport, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &llm.GeneratedReport{Summary: "ok"}, nil
	})
	m := startManager(t, store, gen, 2)

	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitFor(t, func() bool {
		for i := int64(1); i <= 6; i++ {
			if store.status(i) != domain.ReportStatusReady {
				return false
			}
		}
		return true
	})
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("peak concurrency = %d", p)
	}
}
