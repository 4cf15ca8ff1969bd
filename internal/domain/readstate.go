package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReadState tracks the last message a (kind, subject_id) participant has
// seen in a conversation. Upserts are blind: the store tolerates an
// older last_read_message_id overwriting a newer one (see DESIGN.md).
type ReadState struct {
	ConversationID    uuid.UUID
	Kind              PrincipalKind
	SubjectID         int64
	LastReadMessageID uuid.NullUUID
	UpdatedAt         time.Time
}
