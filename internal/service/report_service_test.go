package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/storage"
)

type fakeQueue struct {
	enqueued  []int64
	cancelled []int64
	err       error
}

func (q *fakeQueue) Enqueue(_ context.Context, id int64) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, id)
	return nil
}

func (q *fakeQueue) Cancel(_ context.Context, id int64) error {
	q.cancelled = append(q.cancelled, id)
	return nil
}

type memoryStorage struct {
	objects map[string][]byte
	seq     int
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) UploadObject(_ context.Context, body io.Reader, opts storage.UploadOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.seq++
	key := fmt.Sprintf("%s/%d-%s", opts.Folder, m.seq, opts.FileName)
	m.objects[key] = data
	return key, nil
}

func (m *memoryStorage) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memoryStorage) DeleteObject(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) GetObjectURL(_ context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://files.test/%s?expires=%d", key, int(expires.Seconds())), nil
}

func TestUploadStoresPDFAndEnqueues(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{}
	store := newMemoryStorage()
	svc := NewReportService(repos.Reports, queue, store, quietLogger())
	ctx := context.Background()

	rep, err := svc.Upload(ctx, ReportUpload{
		Title:    "Relatório semanal 12",
		Text:     "Semana positiva para o Ibovespa.",
		FileName: "semana-12.pdf",
		PDF:      strings.NewReader("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if rep.Status != domain.ReportStatusPending || rep.PDFKey == "" || rep.ReportDate.IsZero() {
		t.Fatalf("report = %+v", rep)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != rep.ID {
		t.Fatalf("enqueued = %v", queue.enqueued)
	}
	if _, ok := store.objects[rep.PDFKey]; !ok {
		t.Fatalf("pdf %q not stored", rep.PDFKey)
	}

	if _, err := svc.Get(ctx, rep.ID, false); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("draft visible to members: %v", err)
	}
	if _, err := svc.PDFURL(ctx, rep.ID, true); err != nil {
		t.Fatalf("admin pdf url: %v", err)
	}

	if err := svc.Delete(ctx, rep.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(queue.cancelled) != 1 || len(store.objects) != 0 {
		t.Fatalf("delete left cancelled=%v objects=%v", queue.cancelled, store.objects)
	}
}

func TestUploadWithoutStorage(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{err: errors.New("manager stopped")}
	svc := NewReportService(repos.Reports, queue, nil, quietLogger())
	ctx := context.Background()

	if _, err := svc.Upload(ctx, ReportUpload{Title: "x", Text: "y", PDF: strings.NewReader("pdf")}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("pdf without storage err = %v", err)
	}
	if _, err := svc.Upload(ctx, ReportUpload{Title: "x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing text err = %v", err)
	}

	rep, err := svc.Upload(ctx, ReportUpload{Title: "Só texto", Text: "conteúdo"})
	if err != nil {
		t.Fatalf("text-only upload should survive a queue error: %v", err)
	}
	if _, err := svc.PDFURL(ctx, rep.ID, true); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("pdf url without pdf err = %v", err)
	}
}

func TestPublishAndRegenerateRules(t *testing.T) {
	repos := newTestRepos(t)
	queue := &fakeQueue{}
	svc := NewReportService(repos.Reports, queue, nil, quietLogger())
	ctx := context.Background()

	rep, err := svc.Upload(ctx, ReportUpload{Title: "Semana 13", Text: "texto"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := svc.Publish(ctx, rep.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("publish pending err = %v", err)
	}
	if _, err := svc.Regenerate(ctx, rep.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("regenerate pending err = %v", err)
	}

	sections := []domain.ReportSection{{Title: "Destaques", Content: "Alta de 2%.", Tickers: []string{"PETR4"}}}
	if err := repos.Reports.SaveGenerated(ctx, rep.ID, "Resumo", sections); err != nil {
		t.Fatalf("save generated: %v", err)
	}
	if _, err := svc.Regenerate(ctx, rep.ID); err != nil {
		t.Fatalf("regenerate ready report: %v", err)
	}
	if len(queue.enqueued) != 2 {
		t.Fatalf("enqueued = %v", queue.enqueued)
	}

	if err := repos.Reports.SaveGenerated(ctx, rep.ID, "Resumo", sections); err != nil {
		t.Fatalf("save generated: %v", err)
	}
	published, err := svc.Publish(ctx, rep.ID)
	if err != nil || published.Status != domain.ReportStatusPublished || published.PublishedAt == nil {
		t.Fatalf("publish = %+v, %v", published, err)
	}
	if _, err := svc.Regenerate(ctx, rep.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("regenerate published err = %v", err)
	}

	list, err := svc.ListPublished(ctx)
	if err != nil || len(list) != 1 || list[0].Sections[0].Tickers[0] != "PETR4" {
		t.Fatalf("published = %+v, %v", list, err)
	}
}

func TestAnalysisLifecycle(t *testing.T) {
	repos := newTestRepos(t)
	store := newMemoryStorage()
	svc := NewAnalysisService(repos.Analyses, store, quietLogger())
	ctx := context.Background()

	for _, in := range []AnalysisInput{
		{Ticker: "WEGE3", Quarter: "5T24", Title: "WEG 5T24"},
		{Ticker: "WEGE3", Quarter: "3T24", Title: ""},
		{Ticker: "WEGE3", Quarter: "3T24", Title: "WEG", Recommendation: "NEUTRO"},
		{Ticker: "WEGE3", Quarter: "3T24", Title: "WEG", TargetPrice: decimal.NewNullDecimal(decimal.Zero)},
	} {
		if _, err := svc.Create(ctx, in); !errors.Is(err, ErrValidation) {
			t.Errorf("Create(%+v) err = %v", in, err)
		}
	}

	a, err := svc.Create(ctx, AnalysisInput{Ticker: "wege3", Quarter: "3t24", Title: "WEG 3T24"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Quarter != "3T24" || a.Recommendation != domain.BiasHold || a.Status != domain.AnalysisStatusDraft {
		t.Fatalf("analysis = %+v", a)
	}
	if _, err := svc.Create(ctx, AnalysisInput{Ticker: "WEGE3", Quarter: "3T24", Title: "dup"}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("duplicate quarter err = %v", err)
	}

	if _, err := svc.SetPublished(ctx, a.ID, true); !errors.Is(err, ErrValidation) {
		t.Fatalf("publish empty analysis err = %v", err)
	}

	first, err := svc.AttachPDF(ctx, a.ID, "weg.pdf", strings.NewReader("v1"))
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	firstKey := first.PDFKey
	second, err := svc.AttachPDF(ctx, a.ID, "weg.pdf", strings.NewReader("v2"))
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if _, ok := store.objects[firstKey]; ok || len(store.objects) != 1 || !strings.HasPrefix(second.PDFKey, "analyses/wege3/") {
		t.Fatalf("objects after replace = %v", store.objects)
	}

	if _, err := svc.Get(ctx, a.ID, false); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("draft visible: %v", err)
	}
	if _, err := svc.SetPublished(ctx, a.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	url, err := svc.PDFURL(ctx, a.ID, false)
	if err != nil || !strings.Contains(url, "expires=900") {
		t.Fatalf("pdf url = %q, %v", url, err)
	}

	published, err := svc.List(ctx, repository.AnalysisFilter{Ticker: "wege3", Status: domain.AnalysisStatusPublished})
	if err != nil || len(published) != 1 {
		t.Fatalf("published analyses = %+v, %v", published, err)
	}
}
