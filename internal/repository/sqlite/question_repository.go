package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const createQuestionsTable = `
CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'GERAL',
	status TEXT NOT NULL,
	is_faq INTEGER NOT NULL DEFAULT 0,
	faq_order INTEGER NOT NULL DEFAULT 0,
	faq_title TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_questions_user_id ON questions(user_id);
CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question_id INTEGER NOT NULL,
	author_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(question_id) REFERENCES questions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_answers_question_id ON answers(question_id);
`

const questionColumns = `id, user_id, title, content, category, status, is_faq, faq_order, faq_title, created_at, updated_at`

type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) repository.QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createQuestionsTable); err != nil {
		return fmt.Errorf("create questions table: %w", err)
	}
	return nil
}

func (r *QuestionRepository) Create(ctx context.Context, q *domain.Question) (int64, error) {
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO questions (user_id, title, content, category, status, is_faq, faq_order, faq_title, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.UserID,
		q.Title,
		q.Content,
		q.Category,
		string(q.Status),
		boolToInt(q.IsFAQ),
		q.FAQOrder,
		q.FAQTitle,
		q.CreatedAt,
		q.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("question last insert id: %w", err)
	}
	q.ID = id
	return id, nil
}

func (r *QuestionRepository) Get(ctx context.Context, id int64) (*domain.Question, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=?`, id)
	q, err := scanQuestion(row)
	if err != nil {
		return nil, err
	}
	answers, err := r.listAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Answers = answers
	return q, nil
}

func (r *QuestionRepository) List(ctx context.Context, filter repository.QuestionFilter) ([]domain.Question, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID > 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.FAQOnly {
		clauses = append(clauses, "is_faq = 1")
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	if filter.FAQOnly {
		query += ` ORDER BY faq_order ASC, id ASC`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range questions {
		answers, err := r.listAnswers(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

func (r *QuestionRepository) UpdateStatus(ctx context.Context, id int64, status domain.QuestionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE questions SET status=?, updated_at=? WHERE id=?`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update question status: %w", err)
	}
	return expectAffected(res, "question")
}

func (r *QuestionRepository) SetFAQ(ctx context.Context, id int64, isFAQ bool, order int, title string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE questions
SET is_faq=?, faq_order=?, faq_title=?, updated_at=?
WHERE id=?`,
		boolToInt(isFAQ),
		order,
		title,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update question faq: %w", err)
	}
	return expectAffected(res, "question")
}

func (r *QuestionRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id=?`, id); err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if err := expectAffected(res, "question"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question delete: %w", err)
	}
	return nil
}

func (r *QuestionRepository) AddAnswer(ctx context.Context, a *domain.Answer) (int64, error) {
	a.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO answers (question_id, author_id, content, created_at)
VALUES (?, ?, ?, ?)`,
		a.QuestionID,
		a.AuthorID,
		a.Content,
		a.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert answer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("answer last insert id: %w", err)
	}
	a.ID = id
	return id, nil
}

func (r *QuestionRepository) listAnswers(ctx context.Context, questionID int64) ([]domain.Answer, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, question_id, author_id, content, created_at
FROM answers
WHERE question_id=?
ORDER BY id ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := []domain.Answer{}
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.AuthorID, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanQuestion(row scanner) (*domain.Question, error) {
	var (
		q      domain.Question
		status string
		isFAQ  int
	)
	if err := row.Scan(
		&q.ID,
		&q.UserID,
		&q.Title,
		&q.Content,
		&q.Category,
		&status,
		&isFAQ,
		&q.FAQOrder,
		&q.FAQTitle,
		&q.CreatedAt,
		&q.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("question: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan question: %w", err)
	}
	q.Status = domain.QuestionStatus(status)
	q.IsFAQ = isFAQ != 0
	return &q, nil
}
