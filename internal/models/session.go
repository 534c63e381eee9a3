package models

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionCollecting     SessionStatus = "collecting"
	SessionQuestionsReady SessionStatus = "questions_ready"
	SessionReadyToBuild   SessionStatus = "ready_to_build"
	SessionBuilding       SessionStatus = "building"
	SessionCompleted      SessionStatus = "completed"
	SessionFailed         SessionStatus = "failed"
)

// MaxQuestions is the most questions a session surfaces at once.
const MaxQuestions = 4

// Session is one conversation turning a prompt into a buildable specification.
type Session struct {
	ID            string                  `json:"session_id"`
	Status        SessionStatus           `json:"status"`
	Summary       string                  `json:"summary"`
	Questions     []ClarificationQuestion `json:"questions"`
	Specification *Specification          `json:"specification,omitempty"`
	Adjustments   []Adjustment            `json:"adjustments"`
	Prompt        string                  `json:"prompt"`
	Answers       map[string]any          `json:"answers"`
	CreatedAt     time.Time               `json:"created_at"`
	ExpiresAt     time.Time               `json:"expires_at"`
}

// Clone returns a deep copy so callers can replace the record wholesale.
func (s *Session) Clone() *Session {
	out := *s
	out.Questions = append([]ClarificationQuestion(nil), s.Questions...)
	out.Adjustments = append([]Adjustment(nil), s.Adjustments...)
	if s.Specification != nil {
		spec := s.Specification.Clone()
		out.Specification = &spec
	}
	out.Answers = make(map[string]any, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	return &out
}
