package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoUpdateBudget bounds how long one Update keeps retrying lost writes.
const mongoUpdateBudget = 10 * time.Second

type answerDoc struct {
	QuestionID       string `bson:"question_id"`
	SelectedOptionID string `bson:"selected_option_id,omitempty"`
	TextAnswer       string `bson:"text_answer,omitempty"`
	CodeAnswer       string `bson:"code_answer,omitempty"`
}

type violationDoc struct {
	Type      string    `bson:"type"`
	Severity  string    `bson:"severity"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
}

type attemptDoc struct {
	ID             string         `bson:"_id"`
	CandidateID    string         `bson:"candidate_id"`
	ExamID         string         `bson:"exam_id"`
	Status         string         `bson:"status"`
	StartedAt      time.Time      `bson:"started_at"`
	EndsAt         time.Time      `bson:"ends_at"`
	SubmittedAt    *time.Time     `bson:"submitted_at,omitempty"`
	WarningsCount  int            `bson:"warnings_count"`
	QuestionOrder  []string       `bson:"question_order"`
	Answers        []answerDoc    `bson:"answers"`
	Violations     []violationDoc `bson:"violations"`
	Score          float64        `bson:"score"`
	TotalQuestions int            `bson:"total_questions"`
	NavigationMode string         `bson:"navigation_mode"`
	CreatedAt      time.Time      `bson:"created_at"`
	UpdatedAt      time.Time      `bson:"updated_at"`
	// Version guards Update: a replace only lands if nobody wrote in between.
	Version int64 `bson:"version"`
}

// MongoAttemptStore stores attempts as documents and serializes writers with
// an optimistic version check.
type MongoAttemptStore struct {
	collection *mongo.Collection
	backoff    conflictBackoff
}

// NewMongoAttemptStore creates a store on the given collection.
func NewMongoAttemptStore(database *mongo.Database, collection string) *MongoAttemptStore {
	return &MongoAttemptStore{
		collection: database.Collection(collection),
		backoff:    defaultConflictBackoff,
	}
}

// EnsureIndexes creates the lookup indexes used by the list queries.
func (s *MongoAttemptStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "candidate_id", Value: 1}, {Key: "started_at", Value: -1}}},
		{Keys: bson.D{{Key: "exam_id", Value: 1}, {Key: "started_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "ends_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new attempt document.
func (s *MongoAttemptStore) Create(ctx context.Context, a *model.Attempt) error {
	doc := toAttemptDoc(a)
	doc.Version = 1
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt owned by candidateID.
func (s *MongoAttemptStore) Get(ctx context.Context, attemptID, candidateID uuid.UUID) (*model.Attempt, error) {
	doc, err := s.find(ctx, attemptID, candidateID)
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

// Update re-reads and re-applies mutate whenever another writer bumped the
// version first, backing off between rounds. It only gives up with
// ErrConcurrentUpdate once mongoUpdateBudget is spent.
func (s *MongoAttemptStore) Update(ctx context.Context, attemptID, candidateID uuid.UUID, mutate func(a *model.Attempt) error) (*model.Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoUpdateBudget)
	defer cancel()

	var updated *model.Attempt
	err := retryOnConflict(ctx, s.backoff, func(ctx context.Context) (bool, error) {
		doc, err := s.find(ctx, attemptID, candidateID)
		if err != nil {
			return false, err
		}
		a, err := doc.toModel()
		if err != nil {
			return false, err
		}

		if err := mutate(a); err != nil {
			return false, err
		}

		next := toAttemptDoc(a)
		next.Version = doc.Version + 1
		res, err := s.collection.ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: doc.ID}, {Key: "version", Value: doc.Version}},
			next)
		if err != nil {
			return false, fmt.Errorf("replace attempt: %w", err)
		}
		if res.MatchedCount == 0 {
			return false, nil
		}
		updated = a
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListByCandidate retrieves all attempts of a candidate, newest first.
func (s *MongoAttemptStore) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Attempt, error) {
	return s.list(ctx, bson.D{{Key: "candidate_id", Value: candidateID.String()}}, newestFirst())
}

// ListByExam retrieves all attempts of an exam, newest first.
func (s *MongoAttemptStore) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	return s.list(ctx, bson.D{{Key: "exam_id", Value: examID.String()}}, newestFirst())
}

// ListInProgress retrieves every attempt that is still running.
func (s *MongoAttemptStore) ListInProgress(ctx context.Context) ([]model.Attempt, error) {
	return s.list(ctx, bson.D{{Key: "status", Value: string(model.AttemptStatusInProgress)}}, newestFirst())
}

// ListExpired retrieves up to limit running attempts whose deadline passed.
func (s *MongoAttemptStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	filter := bson.D{
		{Key: "status", Value: string(model.AttemptStatusInProgress)},
		{Key: "ends_at", Value: bson.D{{Key: "$lt", Value: now}}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "ends_at", Value: 1}}).
		SetLimit(int64(limit))
	return s.list(ctx, filter, opts)
}

// List retrieves one page of attempts, newest first, plus the total count.
func (s *MongoAttemptStore) List(ctx context.Context, limit, offset int) ([]model.Attempt, int, error) {
	total, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("count attempts: %w", err)
	}
	opts := newestFirst().
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	attempts, err := s.list(ctx, bson.D{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return attempts, int(total), nil
}

func (s *MongoAttemptStore) find(ctx context.Context, attemptID, candidateID uuid.UUID) (*attemptDoc, error) {
	var doc attemptDoc
	err := s.collection.FindOne(ctx, bson.D{
		{Key: "_id", Value: attemptID.String()},
		{Key: "candidate_id", Value: candidateID.String()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	return &doc, nil
}

func (s *MongoAttemptStore) list(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]model.Attempt, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []attemptDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}

	attempts := make([]model.Attempt, 0, len(docs))
	for i := range docs {
		a, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, nil
}

func newestFirst() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
}

func toAttemptDoc(a *model.Attempt) attemptDoc {
	doc := attemptDoc{
		ID:             a.ID.String(),
		CandidateID:    a.CandidateID.String(),
		ExamID:         a.ExamID.String(),
		Status:         string(a.Status),
		StartedAt:      a.StartedAt,
		EndsAt:         a.EndsAt,
		SubmittedAt:    a.SubmittedAt,
		WarningsCount:  a.WarningsCount,
		QuestionOrder:  make([]string, 0, len(a.QuestionOrder)),
		Answers:        make([]answerDoc, 0, len(a.Answers)),
		Violations:     make([]violationDoc, 0, len(a.Violations)),
		Score:          a.Score,
		TotalQuestions: a.TotalQuestions,
		NavigationMode: string(a.NavigationMode),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	for _, id := range a.QuestionOrder {
		doc.QuestionOrder = append(doc.QuestionOrder, id.String())
	}
	for _, ans := range a.Answers {
		doc.Answers = append(doc.Answers, answerDoc{
			QuestionID:       ans.QuestionID.String(),
			SelectedOptionID: ans.SelectedOptionID,
			TextAnswer:       ans.TextAnswer,
			CodeAnswer:       ans.CodeAnswer,
		})
	}
	for _, v := range a.Violations {
		doc.Violations = append(doc.Violations, violationDoc{
			Type:      string(v.Type),
			Severity:  string(v.Severity),
			Message:   v.Message,
			Timestamp: v.Timestamp,
		})
	}
	return doc
}

func (d *attemptDoc) toModel() (*model.Attempt, error) {
	var (
		a   model.Attempt
		err error
	)
	if a.ID, err = uuid.Parse(d.ID); err != nil {
		return nil, fmt.Errorf("parse attempt id: %w", err)
	}
	if a.CandidateID, err = uuid.Parse(d.CandidateID); err != nil {
		return nil, fmt.Errorf("parse candidate id: %w", err)
	}
	if a.ExamID, err = uuid.Parse(d.ExamID); err != nil {
		return nil, fmt.Errorf("parse exam id: %w", err)
	}
	a.Status = model.AttemptStatus(d.Status)
	// BSON datetimes come back in local time with millisecond precision.
	a.StartedAt = d.StartedAt.UTC()
	a.EndsAt = d.EndsAt.UTC()
	if d.SubmittedAt != nil {
		t := d.SubmittedAt.UTC()
		a.SubmittedAt = &t
	}
	a.WarningsCount = d.WarningsCount
	a.Score = d.Score
	a.TotalQuestions = d.TotalQuestions
	a.NavigationMode = model.NavigationMode(d.NavigationMode)
	a.CreatedAt = d.CreatedAt.UTC()
	a.UpdatedAt = d.UpdatedAt.UTC()

	a.QuestionOrder = make([]uuid.UUID, 0, len(d.QuestionOrder))
	for _, raw := range d.QuestionOrder {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse question id: %w", err)
		}
		a.QuestionOrder = append(a.QuestionOrder, id)
	}
	a.Answers = make([]model.Answer, 0, len(d.Answers))
	for _, ans := range d.Answers {
		qid, err := uuid.Parse(ans.QuestionID)
		if err != nil {
			return nil, fmt.Errorf("parse answer question id: %w", err)
		}
		a.Answers = append(a.Answers, model.Answer{
			QuestionID:       qid,
			SelectedOptionID: ans.SelectedOptionID,
			TextAnswer:       ans.TextAnswer,
			CodeAnswer:       ans.CodeAnswer,
		})
	}
	a.Violations = make([]model.Violation, 0, len(d.Violations))
	for _, v := range d.Violations {
		a.Violations = append(a.Violations, model.Violation{
			Type:      model.ViolationType(v.Type),
			Severity:  model.Severity(v.Severity),
			Message:   v.Message,
			Timestamp: v.Timestamp.UTC(),
		})
	}
	return &a, nil
}
