package service

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/proctorhub/assessment-backend/internal/model"
)

const (
	mcqPoints      = 1.0
	scenarioPoints = 0.5
	codingPoints   = 1.0

	// Answers must be strictly longer than these (after trimming) to earn points.
	scenarioMinLength = 20
	codingMinLength   = 30
)

// ScoreAttempt maps an exam definition and a set of answers to a score in
// [0,100] rounded to two decimals. The total is normalized by the number of
// questions in the exam, not the number answered. Answers referencing
// questions the exam no longer contains earn nothing.
func ScoreAttempt(exam *model.Exam, answers []model.Answer) float64 {
	if exam == nil {
		return 0
	}

	seen := make(map[string]struct{}, len(answers))
	var points float64
	for _, ans := range answers {
		key := ans.QuestionID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		q, ok := exam.Question(ans.QuestionID)
		if !ok {
			continue
		}
		points += questionPoints(q, ans)
	}

	total := len(exam.Questions)
	if total < 1 {
		total = 1
	}
	return roundTo2(100 * points / float64(total))
}

func questionPoints(q *model.Question, ans model.Answer) float64 {
	switch q.QuestionType {
	case model.QuestionTypeMCQ:
		if ans.SelectedOptionID != "" && ans.SelectedOptionID == q.CorrectOptionID {
			return mcqPoints
		}
	case model.QuestionTypeScenario:
		if trimmedLen(ans.TextAnswer) > scenarioMinLength {
			return scenarioPoints
		}
	case model.QuestionTypeCoding:
		if trimmedLen(ans.CodeAnswer) > codingMinLength {
			return codingPoints
		}
	}
	return 0
}

func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
