package attempts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/edu-vault/backend/internal/gradebook"
	"github.com/edu-vault/backend/internal/models"
)

// querier is the subset of *sql.DB and *sql.Tx the queries below use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Attempt records ─────────────────────────────────────

const attemptColumns = `id, user_id, topic_id, block_id, current_version, current_learning_mode,
	question_metadata, question_metadata_description, created_at, updated_at`

func scanAttempts(row *sql.Row) (*models.UserQuestionAttempts, error) {
	var a models.UserQuestionAttempts
	var metadata, descriptions []byte
	err := row.Scan(&a.ID, &a.UserID, &a.TopicID, &a.BlockID, &a.CurrentVersion, &a.CurrentLearningMode,
		&metadata, &descriptions, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &a.QuestionMetadata); err != nil {
		return nil, fmt.Errorf("decode question_metadata: %w", err)
	}
	if err := json.Unmarshal(descriptions, &a.Descriptions); err != nil {
		return nil, fmt.Errorf("decode question_metadata_description: %w", err)
	}
	if a.Descriptions == nil {
		a.Descriptions = make(map[string]models.AttemptDescription)
	}
	return &a, nil
}

// GetAttempts returns nil, nil when the user has no record for the topic.
func (s *Store) GetAttempts(ctx context.Context, userID, topicID int64) (*models.UserQuestionAttempts, error) {
	a, err := scanAttempts(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM user_question_attempts WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get attempts: %w", models.ErrDatabaseQuery, err)
	}
	return a, nil
}

// GetOrCreateAttempts starts a record at v1.0.0 in normal mode when none exists.
func (s *Store) GetOrCreateAttempts(ctx context.Context, userID, topicID int64, blockID string) (*models.UserQuestionAttempts, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_question_attempts (user_id, topic_id, block_id, current_version, current_learning_mode, question_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, topic_id) DO NOTHING`,
		userID, topicID, blockID, models.InitialVersion, models.ModeNormal,
		`{"`+models.InitialVersion+`": {}}`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create attempts: %w", models.ErrDatabaseUpdate, err)
	}
	a, err := s.GetAttempts(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: attempts for user %d topic %d vanished", models.ErrDatabaseQuery, userID, topicID)
	}
	return a, nil
}

// SaveMetadata writes back the question metadata and block id of a record.
func (s *Store) SaveMetadata(ctx context.Context, a *models.UserQuestionAttempts) error {
	metadata, err := json.Marshal(a.QuestionMetadata)
	if err != nil {
		return fmt.Errorf("encode question_metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE user_question_attempts
		 SET question_metadata = $1, block_id = $2, updated_at = NOW()
		 WHERE id = $3`,
		string(metadata), a.BlockID, a.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: save attempts: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}

// ── Question sets ───────────────────────────────────────

func scanQuestionSet(row *sql.Row) (*models.UserQuestionSet, error) {
	var qs models.UserQuestionSet
	var ids []byte
	if err := row.Scan(&qs.ID, &qs.UserID, &qs.TopicID, &ids, &qs.GradingMode, &qs.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ids, &qs.QuestionListIDs); err != nil {
		return nil, fmt.Errorf("decode question_list_ids: %w", err)
	}
	if qs.QuestionListIDs == nil {
		qs.QuestionListIDs = []string{}
	}
	return &qs, nil
}

// GetOrCreateQuestionSet seeds the user's set from the topic's default set,
// both on first use and after a grading pass emptied it. Returns ErrNotFound
// when the topic has no default set.
func (s *Store) GetOrCreateQuestionSet(ctx context.Context, userID, topicID int64) (*models.UserQuestionSet, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_question_sets (user_id, topic_id, question_list_ids)
		 SELECT $1, topic_id, question_list_ids FROM default_question_sets WHERE topic_id = $2
		 ON CONFLICT (user_id, topic_id) DO NOTHING`,
		userID, topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create question set: %w", models.ErrDatabaseUpdate, err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE user_question_sets s
		 SET question_list_ids = d.question_list_ids, updated_at = NOW()
		 FROM default_question_sets d
		 WHERE s.user_id = $1 AND s.topic_id = $2 AND d.topic_id = s.topic_id
		   AND s.question_list_ids = '[]'::jsonb AND NOT s.grading_mode`,
		userID, topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: reseed question set: %w", models.ErrDatabaseUpdate, err)
	}

	qs, err := scanQuestionSet(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, topic_id, question_list_ids, grading_mode, updated_at
		 FROM user_question_sets WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no question set for topic %d", models.ErrNotFound, topicID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get question set: %w", models.ErrDatabaseQuery, err)
	}
	return qs, nil
}

// SetDefaultQuestionSet replaces a topic's default question list.
func (s *Store) SetDefaultQuestionSet(ctx context.Context, topicID int64, ids []string) error {
	body, err := questionListJSON(ids)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO default_question_sets (topic_id, question_list_ids) VALUES ($1, $2)
		 ON CONFLICT (topic_id) DO UPDATE SET question_list_ids = EXCLUDED.question_list_ids, updated_at = NOW()`,
		topicID, body,
	)
	if err != nil {
		return fmt.Errorf("%w: set default question set: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}

// ── Grading mode ────────────────────────────────────────

// EnterGradingMode flips grading_mode from false to true and reports whether
// this call did the flip.
func (s *Store) EnterGradingMode(ctx context.Context, userID, topicID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_question_sets SET grading_mode = TRUE, updated_at = NOW()
		 WHERE user_id = $1 AND topic_id = $2 AND grading_mode = FALSE`,
		userID, topicID,
	)
	if err != nil {
		return false, fmt.Errorf("%w: enter grading mode: %w", models.ErrDatabaseUpdate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: enter grading mode: %w", models.ErrDatabaseUpdate, err)
	}
	return n == 1, nil
}

func (s *Store) ExitGradingMode(ctx context.Context, userID, topicID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_question_sets SET grading_mode = FALSE, updated_at = NOW()
		 WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID,
	)
	if err != nil {
		return fmt.Errorf("%w: exit grading mode: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}

// ── Topic mastery ───────────────────────────────────────

// GetTopicMastery returns nil, nil before the first graded pass.
func (s *Store) GetTopicMastery(ctx context.Context, userID, topicID int64) (*models.TopicMastery, error) {
	var m models.TopicMastery
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, topic_id, points_earned, mastery_status, updated_at
		 FROM topic_mastery WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID,
	).Scan(&m.UserID, &m.TopicID, &m.PointsEarned, &m.MasteryStatus, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get topic mastery: %w", models.ErrDatabaseQuery, err)
	}
	return &m, nil
}

// ── Transactional side effects ──────────────────────────

// WithinTx runs fn against a store bound to one transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(gradebook.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", models.ErrDatabaseUpdate, err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}

// txStore serializes statements because a *sql.Tx runs one statement at a
// time and observers call it concurrently.
type txStore struct {
	mu sync.Mutex
	q  querier
}

func (t *txStore) AdvanceAttempt(ctx context.Context, userID, topicID int64, mode models.LearningMode, desc models.AttemptDescription) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return advanceAttempt(ctx, t.q, userID, topicID, mode, desc)
}

func (t *txStore) ReplaceQuestionSet(ctx context.Context, userID, topicID int64, ids []string) error {
	body, err := questionListJSON(ids)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.q.ExecContext(ctx,
		`UPDATE user_question_sets SET question_list_ids = $3::jsonb, updated_at = NOW()
		 WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID, body,
	)
	if err != nil {
		return fmt.Errorf("%w: replace question set: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}

// questionListJSON encodes ids for a jsonb column; nil becomes [].
func questionListJSON(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	body, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("%w: encode question list: %w", models.ErrValidation, err)
	}
	return string(body), nil
}

func (t *txStore) SaveTopicMastery(ctx context.Context, m models.TopicMastery) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO topic_mastery (user_id, topic_id, points_earned, mastery_status, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, topic_id) DO UPDATE
		 SET points_earned = EXCLUDED.points_earned, mastery_status = EXCLUDED.mastery_status, updated_at = NOW()`,
		m.UserID, m.TopicID, m.PointsEarned, m.MasteryStatus,
	)
	if err != nil {
		return fmt.Errorf("%w: save topic mastery: %w", models.ErrDatabaseUpdate, err)
	}
	return nil
}

// advanceAttempt closes the current version and opens an empty next one in mode.
func advanceAttempt(ctx context.Context, q querier, userID, topicID int64, mode models.LearningMode, desc models.AttemptDescription) (string, error) {
	var current string
	var metadata, descriptions []byte
	err := q.QueryRowContext(ctx,
		`SELECT current_version, question_metadata, question_metadata_description
		 FROM user_question_attempts WHERE user_id = $1 AND topic_id = $2 FOR UPDATE`,
		userID, topicID,
	).Scan(&current, &metadata, &descriptions)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no attempts for user %d topic %d", models.ErrNotFound, userID, topicID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: load attempts: %w", models.ErrDatabaseQuery, err)
	}

	next, err := models.NextVersion(current)
	if err != nil {
		return "", err
	}
	metadata, descriptions, err = withVersion(metadata, descriptions, next, desc)
	if err != nil {
		return "", err
	}

	_, err = q.ExecContext(ctx,
		`UPDATE user_question_attempts
		 SET current_version = $1, current_learning_mode = $2,
		     question_metadata = $3, question_metadata_description = $4, updated_at = NOW()
		 WHERE user_id = $5 AND topic_id = $6`,
		next, mode, string(metadata), string(descriptions), userID, topicID,
	)
	if err != nil {
		return "", fmt.Errorf("%w: advance attempts: %w", models.ErrDatabaseUpdate, err)
	}
	return next, nil
}

// withVersion adds an empty metadata map and the description under version.
func withVersion(metadata, descriptions []byte, version string, desc models.AttemptDescription) ([]byte, []byte, error) {
	meta := map[string]map[string]models.QuestionMetadata{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return nil, nil, fmt.Errorf("decode question_metadata: %w", err)
		}
	}
	descs := map[string]models.AttemptDescription{}
	if len(descriptions) > 0 {
		if err := json.Unmarshal(descriptions, &descs); err != nil {
			return nil, nil, fmt.Errorf("decode question_metadata_description: %w", err)
		}
	}
	if meta == nil {
		meta = map[string]map[string]models.QuestionMetadata{}
	}
	if descs == nil {
		descs = map[string]models.AttemptDescription{}
	}
	meta[version] = map[string]models.QuestionMetadata{}
	descs[version] = desc

	metaOut, err := json.Marshal(meta)
	if err != nil {
		return nil, nil, fmt.Errorf("encode question_metadata: %w", err)
	}
	descOut, err := json.Marshal(descs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode question_metadata_description: %w", err)
	}
	return metaOut, descOut, nil
}
