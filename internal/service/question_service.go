package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const (
	maxQuestionTitle   = 200
	maxQuestionContent = 5000
)

// QuestionService handles the member Q&A and the FAQ built from it.
type QuestionService interface {
	Ask(ctx context.Context, userID int64, title, content, category string) (*domain.Question, error)
	Get(ctx context.Context, viewer *domain.User, id int64) (*domain.Question, error)
	ListMine(ctx context.Context, userID int64) ([]domain.Question, error)
	List(ctx context.Context, filter repository.QuestionFilter) ([]domain.Question, error)
	Answer(ctx context.Context, authorID, questionID int64, content string) (*domain.Answer, error)
	Close(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	SetFAQ(ctx context.Context, id int64, isFAQ bool, order int, title string) error
	FAQ(ctx context.Context, category string) ([]domain.Question, error)
}

type questionService struct {
	questions     repository.QuestionRepository
	notifications repository.NotificationRepository
	log           logrus.FieldLogger
}

func NewQuestionService(questions repository.QuestionRepository, notifications repository.NotificationRepository, log logrus.FieldLogger) QuestionService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &questionService{questions: questions, notifications: notifications, log: log}
}

func (s *questionService) Ask(ctx context.Context, userID int64, title, content, category string) (*domain.Question, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	switch {
	case title == "":
		return nil, invalid("title", "title is required")
	case len(title) > maxQuestionTitle:
		return nil, invalid("title", "title must be at most %d characters", maxQuestionTitle)
	case content == "":
		return nil, invalid("content", "content is required")
	case len(content) > maxQuestionContent:
		return nil, invalid("content", "content must be at most %d characters", maxQuestionContent)
	}

	q := &domain.Question{
		UserID:   userID,
		Title:    title,
		Content:  content,
		Category: strings.ToUpper(strings.TrimSpace(category)),
		Status:   domain.QuestionStatusPending,
	}
	if q.Category == "" {
		q.Category = "GERAL"
	}
	if _, err := s.questions.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Get returns a question to its author, to administrators, or to anyone when it is in the FAQ.
func (s *questionService) Get(ctx context.Context, viewer *domain.User, id int64) (*domain.Question, error) {
	q, err := s.questions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.IsFAQ || viewer.IsAdmin() || (viewer != nil && viewer.ID == q.UserID) {
		return q, nil
	}
	return nil, ErrForbidden
}

func (s *questionService) ListMine(ctx context.Context, userID int64) ([]domain.Question, error) {
	return s.questions.List(ctx, repository.QuestionFilter{UserID: userID})
}

func (s *questionService) List(ctx context.Context, filter repository.QuestionFilter) ([]domain.Question, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "unknown status %q", filter.Status)
	}
	return s.questions.List(ctx, filter)
}

func (s *questionService) Answer(ctx context.Context, authorID, questionID int64, content string) (*domain.Answer, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "answer content is required")
	}
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.Status == domain.QuestionStatusClosed {
		return nil, invalid("status", "question is closed")
	}

	a := &domain.Answer{QuestionID: questionID, AuthorID: authorID, Content: content}
	if _, err := s.questions.AddAnswer(ctx, a); err != nil {
		return nil, err
	}
	if err := s.questions.UpdateStatus(ctx, questionID, domain.QuestionStatusAnswered); err != nil {
		return nil, err
	}

	n := &domain.Notification{
		UserID:    q.UserID,
		Title:     "Sua pergunta foi respondida",
		Message:   fmt.Sprintf("A pergunta \"%s\" recebeu uma resposta.", q.Title),
		Type:      domain.NotificationInfo,
		Category:  "perguntas",
		ActionURL: fmt.Sprintf("/dashboard/perguntas/%d", q.ID),
	}
	if _, err := s.notifications.Create(ctx, n); err != nil {
		s.log.WithError(err).WithField("question_id", q.ID).Warn("notify question author")
	}
	return a, nil
}

func (s *questionService) Close(ctx context.Context, id int64) error {
	return s.questions.UpdateStatus(ctx, id, domain.QuestionStatusClosed)
}

func (s *questionService) Delete(ctx context.Context, id int64) error {
	return s.questions.Delete(ctx, id)
}

// SetFAQ promotes an answered question to the FAQ, or removes it when isFAQ is false.
func (s *questionService) SetFAQ(ctx context.Context, id int64, isFAQ bool, order int, title string) error {
	q, err := s.questions.Get(ctx, id)
	if err != nil {
		return err
	}
	if isFAQ && len(q.Answers) == 0 {
		return invalid("isFaq", "only answered questions can be added to the FAQ")
	}
	title = strings.TrimSpace(title)
	if isFAQ && title == "" {
		title = q.Title
	}
	if !isFAQ {
		order, title = 0, ""
	}
	return s.questions.SetFAQ(ctx, id, isFAQ, order, title)
}

func (s *questionService) FAQ(ctx context.Context, category string) ([]domain.Question, error) {
	return s.questions.List(ctx, repository.QuestionFilter{
		FAQOnly:  true,
		Category: strings.ToUpper(strings.TrimSpace(category)),
	})
}
