// Package authn owns the one touchpoint this service has with
// bearer-token verification: the WS handshake resolves the ?token=
// query parameter to a Principal through this port. Token issuance and
// account policy remain an external collaborator; this package only
// verifies what it's handed.
package authn

import (
	"context"

	"github.com/shopmindai/chat-core/internal/domain"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
}
