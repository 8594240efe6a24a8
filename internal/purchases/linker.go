package purchases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

// LinkResult reports how many guest purchases were attached.
type LinkResult struct {
	LinkedCount int64 `json:"linked_count"`
}

// GuestLinker reassigns email-scoped purchases to a user identity once that
// user authenticates.
type GuestLinker struct {
	logg *logger.Logger
	repo Repository
}

// NewGuestLinker builds a guest linker.
func NewGuestLinker(logg *logger.Logger, repo Repository) (*GuestLinker, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	return &GuestLinker{logg: logg, repo: repo}, nil
}

// Link attaches every unowned purchase for the email to the user. Safe to
// call repeatedly: a second call finds zero eligible rows.
func (l *GuestLinker) Link(ctx context.Context, userID uuid.UUID, email string) (*LinkResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}

	linked, err := l.repo.LinkGuestPurchases(ctx, userID, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link guest purchases")
	}

	logCtx := l.logg.WithUserID(ctx, userID.String())
	logCtx = l.logg.WithField(logCtx, "linked_count", linked)
	l.logg.Info(logCtx, "guest.purchases_linked")

	return &LinkResult{LinkedCount: linked}, nil
}
