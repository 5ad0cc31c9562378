package questions

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/edu-vault/backend/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ── Documents ───────────────────────────────────────────

type optionDoc struct {
	ID        string `bson:"id"`
	Text      string `bson:"text"`
	IsCorrect bool   `bson:"is_correct"`
}

type contentDoc struct {
	Options []optionDoc `bson:"options"`
}

type questionDoc struct {
	ID         bson.ObjectID       `bson:"_id"`
	Text       string              `bson:"text"`
	Topic      string              `bson:"topic"`
	SubTopic   string              `bson:"sub_topic"`
	BlockID    string              `bson:"block_id,omitempty"`
	Difficulty string              `bson:"difficulty"`
	Tags       []string            `bson:"tags"`
	Content    contentDoc          `bson:"content"`
	Solution   models.Solution     `bson:"solution"`
	Hint       string              `bson:"hint"`
	Metadata   models.QuestionInfo `bson:"metadata"`
}

func (d questionDoc) toModel() models.Question {
	q := models.Question{
		ID:         d.ID.Hex(),
		Text:       d.Text,
		Difficulty: models.Difficulty(d.Difficulty),
		Tags:       d.Tags,
		Solution:   d.Solution,
		Hint:       d.Hint,
		Topic:      d.Topic,
		BlockID:    d.BlockID,
		Metadata:   d.Metadata,
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
	for _, o := range d.Content.Options {
		q.Choices = append(q.Choices, models.Choice{Text: o.Text, IsCorrect: o.IsCorrect})
	}
	return q
}

func fromModel(q models.Question) questionDoc {
	d := questionDoc{
		ID:         bson.NewObjectID(),
		Text:       q.Text,
		Topic:      q.Topic,
		BlockID:    q.BlockID,
		Difficulty: string(q.Difficulty),
		Tags:       q.Tags,
		Solution:   q.Solution,
		Hint:       q.Hint,
		Metadata:   q.Metadata,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	for i, c := range q.Choices {
		d.Content.Options = append(d.Content.Options, optionDoc{
			ID:        string(rune('A' + i)),
			Text:      c.Text,
			IsCorrect: c.IsCorrect,
		})
	}
	return d
}

// ── Repository ──────────────────────────────────────────

// Repository reads course question documents from MongoDB.
type Repository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database, collection string) *Repository {
	return &Repository{collection: db.Collection(collection)}
}

// GetQuestionsByIDs returns the questions whose ids parse and exist. Ids that
// are not valid ObjectIDs are skipped, so callers compare lengths to spot
// missing questions.
func (r *Repository) GetQuestionsByIDs(ctx context.Context, ids []string) ([]models.Question, error) {
	objectIDs := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			log.Printf("[questions] skipping invalid question id %q", id)
			continue
		}
		objectIDs = append(objectIDs, oid)
	}
	if len(objectIDs) == 0 {
		return []models.Question{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, fmt.Errorf("%w: find questions: %w", models.ErrDatabaseQuery, err)
	}
	defer cursor.Close(ctx)

	var docs []questionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode questions: %w", models.ErrDatabaseQuery, err)
	}

	// Keep the caller's order.
	byID := make(map[string]models.Question, len(docs))
	for _, d := range docs {
		byID[d.ID.Hex()] = d.toModel()
	}
	questions := make([]models.Question, 0, len(docs))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
			delete(byID, id)
		}
	}
	return questions, nil
}

// SaveQuestions inserts generated questions under fresh ids and returns the
// ids in input order.
func (r *Repository) SaveQuestions(ctx context.Context, questions []models.Question) ([]string, error) {
	if len(questions) == 0 {
		return []string{}, nil
	}
	docs := make([]any, len(questions))
	ids := make([]string, len(questions))
	for i, q := range questions {
		d := fromModel(q)
		docs[i] = d
		ids[i] = d.ID.Hex()
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("%w: insert questions: %w", models.ErrDatabaseUpdate, err)
	}
	log.Printf("[questions] stored %d generated questions", len(ids))
	return ids, nil
}

// GetQuestion returns ErrNotFound for unknown or malformed ids.
func (r *Repository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: question %s", models.ErrNotFound, id)
	}

	var doc questionDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: question %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get question: %w", models.ErrDatabaseQuery, err)
	}

	q := doc.toModel()
	return &q, nil
}

// InitializeIndexes creates the lookup indexes used by topic queries.
func (r *Repository) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "topic", Value: 1}, {Key: "difficulty", Value: 1}}},
		{Keys: bson.D{{Key: "block_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create question indexes: %w", err)
	}
	return nil
}
