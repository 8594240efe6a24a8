package purchases

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
	"github.com/emekadefirst/learnhub-backend/pkg/security"
)

const manualReferencePrefix = "MANUAL"

// AccessLink composes the user-facing link for a granted purchase.
func AccessLink(siteBaseURL string, purchaseID uuid.UUID, accessToken string) string {
	base := strings.TrimRight(siteBaseURL, "/")
	return fmt.Sprintf("%s/access/%s?token=%s", base, purchaseID, url.QueryEscape(accessToken))
}

// ServiceParams groups dependencies for the access service.
type ServiceParams struct {
	Logger      *logger.Logger
	Repo        Repository
	SiteBaseURL string
	Now         func() time.Time
}

// Service covers the admin-facing access operations: manual grants, revokes,
// and token checks for access links.
type Service struct {
	logg    *logger.Logger
	repo    Repository
	baseURL string
	now     func() time.Time
}

// NewService builds an access service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if strings.TrimSpace(params.SiteBaseURL) == "" {
		return nil, fmt.Errorf("site base url required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:    params.Logger,
		repo:    params.Repo,
		baseURL: strings.TrimSpace(params.SiteBaseURL),
		now:     now,
	}, nil
}

// ManualGrantInput captures an operator-initiated access grant.
type ManualGrantInput struct {
	Email       string
	ProductID   uuid.UUID
	ProductType enums.ProductType
	BuyerID     *uuid.UUID
}

// GrantManualAccess creates a zero-amount granted purchase outside of any
// payment. The dedup key still applies, so repeating the grant returns the
// existing row instead of minting a second token.
func (s *Service) GrantManualAccess(ctx context.Context, input ManualGrantInput) (*models.Purchase, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !input.ProductType.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "unknown product type")
	}

	reference, err := security.NewPaymentReference(manualReferencePrefix)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint manual reference")
	}
	token, err := security.NewAccessToken()
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	identityKey := IdentityKey(input.BuyerID, email)
	now := s.now().UTC()
	purchase := &models.Purchase{
		ID:               uuid.New(),
		BuyerID:          input.BuyerID,
		BuyerEmail:       email,
		IdentityKey:      identityKey,
		ProductID:        input.ProductID,
		ProductType:      input.ProductType,
		AmountPaidMinor:  0,
		PaymentReference: reference,
		PaymentStatus:    enums.PaymentStatusSuccess,
		DedupKey:         DedupKey(identityKey, input.ProductID, input.ProductType, reference),
		AccessGranted:    true,
		AccessToken:      token,
		AccessGrantedAt:  &now,
	}

	stored, created, err := s.repo.InsertOrGet(ctx, purchase)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist manual grant")
	}

	logCtx := s.logg.WithPurchaseID(ctx, stored.ID.String())
	logCtx = s.logg.WithField(logCtx, "created", created)
	s.logg.Info(logCtx, "access.manual_grant")

	return stored, AccessLink(s.baseURL, stored.ID, stored.AccessToken), nil
}

// RevokeAccess clears the grant on a purchase. The row and its token stay;
// the flag is the only thing that moves.
func (s *Service) RevokeAccess(ctx context.Context, purchaseID uuid.UUID) error {
	if purchaseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	if !purchase.AccessGranted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "access is not granted")
	}

	if err := s.repo.RevokeAccess(ctx, purchaseID, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke access")
	}

	s.logg.Info(s.logg.WithPurchaseID(ctx, purchaseID.String()), "access.revoked")
	return nil
}

// CheckAccess validates an access link: the purchase must exist, be granted,
// and carry the presented token.
func (s *Service) CheckAccess(ctx context.Context, purchaseID uuid.UUID, token string) (*models.Purchase, error) {
	if purchaseID == uuid.Nil || token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id and token are required")
	}
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	if subtle.ConstantTimeCompare([]byte(purchase.AccessToken), []byte(token)) != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "invalid access token")
	}
	if !purchase.AccessGranted {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access has been revoked")
	}
	return purchase, nil
}
