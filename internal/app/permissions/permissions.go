// Package permissions implements the authorisation checks shared by
// every write-path service.
package permissions

import (
	"context"

	"github.com/google/uuid"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/app/port"
	"github.com/shopmindai/chat-core/internal/domain"
)

// AssertConversationAccess allows admins unconditionally; otherwise it
// requires a participant row matching (conversationID, principal.Kind,
// principal.SubjectID).
func AssertConversationAccess(ctx context.Context, participants port.ParticipantReader, conversationID uuid.UUID, principal domain.Principal) error {
	if principal.IsAdmin() {
		return nil
	}
	ok, err := participants.IsParticipant(ctx, conversationID, principal.Kind, principal.SubjectID)
	if err != nil {
		return apperr.Storage("check participant", err)
	}
	if !ok {
		return apperr.Forbidden("principal is not a participant of this conversation")
	}
	return nil
}

// AssertAdmin rejects non-admin callers.
func AssertAdmin(principal domain.Principal) error {
	if !principal.IsAdmin() {
		return apperr.Forbidden("admin role required")
	}
	return nil
}
