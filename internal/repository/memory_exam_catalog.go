package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
)

// MemoryExamCatalog is an in-process exam catalog and access list, used with
// STORE_DRIVER=memory and in tests.
type MemoryExamCatalog struct {
	mu     sync.RWMutex
	exams  map[uuid.UUID]model.Exam
	grants map[uuid.UUID]map[uuid.UUID]struct{}
}

// NewMemoryExamCatalog creates an empty catalog.
func NewMemoryExamCatalog() *MemoryExamCatalog {
	return &MemoryExamCatalog{
		exams:  make(map[uuid.UUID]model.Exam),
		grants: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// catalogSeed is the on-disk shape read by LoadFile.
type catalogSeed struct {
	Exams  []model.Exam `json:"exams"`
	Grants []struct {
		CandidateID uuid.UUID `json:"candidateId"`
		ExamID      uuid.UUID `json:"examId"`
	} `json:"grants"`
}

// LoadFile reads exams and grants from a JSON seed file.
func (c *MemoryExamCatalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed catalogSeed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	for _, e := range seed.Exams {
		c.Put(e)
	}
	for _, g := range seed.Grants {
		c.Grant(g.CandidateID, g.ExamID)
	}
	return nil
}

// Put adds or replaces an exam.
func (c *MemoryExamCatalog) Put(exam model.Exam) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exams[exam.ID] = exam
}

// Remove deletes an exam, leaving attempts that reference it dangling.
func (c *MemoryExamCatalog) Remove(examID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.exams, examID)
}

// Grant gives a candidate access to an exam.
func (c *MemoryExamCatalog) Grant(candidateID, examID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grants[candidateID] == nil {
		c.grants[candidateID] = make(map[uuid.UUID]struct{})
	}
	c.grants[candidateID][examID] = struct{}{}
}

// GetExam returns a copy of the exam.
func (c *MemoryExamCatalog) GetExam(_ context.Context, examID uuid.UUID) (*model.Exam, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.exams[examID]
	if !ok {
		return nil, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	e.Questions = append([]model.Question(nil), e.Questions...)
	return &e, nil
}

// GetActiveExam returns the exam when it is active.
func (c *MemoryExamCatalog) GetActiveExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e, err := c.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !e.Active {
		return nil, fmt.Errorf("exam %s inactive: %w", examID, ErrNotFound)
	}
	return e, nil
}

// HasAccess reports whether the candidate was granted the exam.
func (c *MemoryExamCatalog) HasAccess(_ context.Context, candidateID, examID uuid.UUID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.grants[candidateID][examID]
	return ok, nil
}
