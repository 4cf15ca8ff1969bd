package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant grants (kind, subject_id) access to a conversation. The
// triple (ConversationID, Kind, SubjectID) is unique and rows are never
// deleted by the core.
type Participant struct {
	ConversationID uuid.UUID
	Kind           PrincipalKind
	SubjectID      int64
	JoinedAt       time.Time
}

func NewParticipant(conversationID uuid.UUID, kind PrincipalKind, subjectID int64, now time.Time) *Participant {
	return &Participant{
		ConversationID: conversationID,
		Kind:           kind,
		SubjectID:      subjectID,
		JoinedAt:       now,
	}
}
