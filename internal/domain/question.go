package domain

import "time"

type QuestionStatus string

const (
	QuestionStatusPending  QuestionStatus = "PENDING"
	QuestionStatusAnswered QuestionStatus = "ANSWERED"
	QuestionStatusClosed   QuestionStatus = "CLOSED"
)

func (s QuestionStatus) Valid() bool {
	switch s {
	case QuestionStatusPending, QuestionStatusAnswered, QuestionStatusClosed:
		return true
	}
	return false
}

// Question is a member question sent to the analysts. Answered questions can be
// promoted to the public FAQ.
type Question struct {
	ID        int64
	UserID    int64
	Title     string
	Content   string
	Category  string
	Status    QuestionStatus
	IsFAQ     bool
	FAQOrder  int
	FAQTitle  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Answers   []Answer
}

type Answer struct {
	ID         int64
	QuestionID int64
	AuthorID   int64
	Content    string
	CreatedAt  time.Time
}
