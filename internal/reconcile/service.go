package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/internal/notify"
	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/internal/purchases"
	"github.com/emekadefirst/learnhub-backend/internal/subscriptions"
	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
	"github.com/emekadefirst/learnhub-backend/pkg/security"
)

// ServiceParams groups dependencies for the reconciliation engine.
type ServiceParams struct {
	Logger        *logger.Logger
	Purchases     purchases.Repository
	Mismatches    MismatchRepository
	Subscriptions *subscriptions.Service
	Mailer        notify.Mailer
	SiteBaseURL   string
	Now           func() time.Time
}

// Service converges provider-verified transactions into local purchase and
// subscription state. It is safe to run on the same transaction any number
// of times: the dedup key decides who writes, everyone reads the same row.
type Service struct {
	logg          *logger.Logger
	purchaseRepo  purchases.Repository
	mismatchRepo  MismatchRepository
	subscriptions *subscriptions.Service
	mailer        notify.Mailer
	baseURL       string
	now           func() time.Time
}

// NewService builds a reconciliation engine.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.Mismatches == nil {
		return nil, fmt.Errorf("mismatch repository required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if strings.TrimSpace(params.SiteBaseURL) == "" {
		return nil, fmt.Errorf("site base url required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:          params.Logger,
		purchaseRepo:  params.Purchases,
		mismatchRepo:  params.Mismatches,
		subscriptions: params.Subscriptions,
		mailer:        params.Mailer,
		baseURL:       strings.TrimSpace(params.SiteBaseURL),
		now:           now,
	}, nil
}

// Result reports the outcome of reconciling one verified transaction.
type Result struct {
	Purchase   *models.Purchase
	Created    bool
	AccessLink string
}

// Reconcile converges one provider-verified transaction. The first call for
// a given dedup key writes the purchase and grants access; every later call,
// from any source, returns the same row untouched. Secondary failures after
// the grant become mismatch rows, never rollbacks.
func (s *Service) Reconcile(ctx context.Context, tx *payments.VerifiedTransaction) (*Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is required")
	}
	if strings.TrimSpace(tx.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}
	if !tx.Status.IsDefinitive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not in a definitive state")
	}

	productID, productType, planName, buyerID, err := productIdentity(tx.Metadata)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(tx.Customer.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}

	identityKey := purchases.IdentityKey(buyerID, email)
	dedupKey := purchases.DedupKey(identityKey, productID, productType, tx.Reference)

	existing, err := s.purchaseRepo.FindByDedupKey(ctx, dedupKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up purchase")
	}
	if existing != nil {
		s.logg.Info(s.logPurchase(ctx, existing), "reconcile.duplicate")
		return s.result(existing, false), nil
	}

	now := s.now().UTC()
	grantedAt := now
	if tx.PaidAt != nil {
		grantedAt = tx.PaidAt.UTC()
	}

	purchase := &models.Purchase{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		BuyerEmail:       email,
		IdentityKey:      identityKey,
		ProductID:        productID,
		ProductType:      productType,
		AmountPaidMinor:  tx.AmountMinor,
		Currency:         tx.Currency,
		PaymentReference: tx.Reference,
		PaymentStatus:    tx.Status,
		DedupKey:         dedupKey,
	}
	if planName != "" {
		purchase.PlanName = &planName
	}
	if purchase.Currency == "" {
		purchase.Currency = "NGN"
	}
	if tx.Status == enums.PaymentStatusSuccess {
		token, tokenErr := security.NewAccessToken()
		if tokenErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, tokenErr, "mint access token")
		}
		purchase.AccessGranted = true
		purchase.AccessToken = token
		purchase.AccessGrantedAt = &grantedAt
	}

	// the intent is logged before the write so a crash between the two
	// leaves a trail
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reference":    tx.Reference,
		"dedup_key":    dedupKey,
		"product_type": productType.String(),
		"status":       tx.Status.String(),
	})
	s.logg.Info(logCtx, "reconcile.write_intent")

	stored, created, err := s.purchaseRepo.InsertOrGet(ctx, purchase)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist purchase")
	}
	if !created {
		s.logg.Info(s.logPurchase(ctx, stored), "reconcile.lost_race")
		return s.result(stored, false), nil
	}

	if stored.PaymentStatus == enums.PaymentStatusSuccess && productType == enums.ProductTypeSubscription {
		s.upsertSubscription(ctx, stored, planName, buyerID)
	}

	s.notifyOutcome(ctx, stored)
	s.logg.Info(s.logPurchase(ctx, stored), "reconcile.converged")
	return s.result(stored, true), nil
}

// upsertSubscription delegates a subscription payment to the lifecycle
// service. The purchase is already committed; anything that goes wrong here
// is recorded, not rolled back.
func (s *Service) upsertSubscription(ctx context.Context, purchase *models.Purchase, planName string, buyerID *uuid.UUID) {
	if buyerID == nil {
		s.recordMismatch(ctx, purchase, enums.MismatchStageSubscriptionUpsert,
			"guest checkout paid for a subscription; access granted but no user to attach the subscription to")
		return
	}

	plan := planName
	if plan == "" {
		plan = "default"
	}
	_, err := s.subscriptions.ApplyPayment(ctx, subscriptions.PaymentInput{
		UserID:      *buyerID,
		PlanName:    plan,
		AmountMinor: purchase.AmountPaidMinor,
		Currency:    purchase.Currency,
		PaidAt:      grantTime(purchase),
	})
	if err != nil {
		s.recordMismatch(ctx, purchase, enums.MismatchStageSubscriptionUpsert, err.Error())
	}
}

func (s *Service) recordMismatch(ctx context.Context, purchase *models.Purchase, stage enums.MismatchStage, detail string) {
	mismatch := &models.ReconciliationMismatch{
		ID:         uuid.New(),
		PurchaseID: purchase.ID,
		Stage:      stage,
		Detail:     detail,
	}
	if err := s.mismatchRepo.Create(ctx, mismatch); err != nil {
		s.logg.Error(s.logPurchase(ctx, purchase), "reconcile.mismatch_write_failed", err)
		return
	}
	s.logg.Warn(s.logg.WithField(s.logPurchase(ctx, purchase), "stage", stage.String()), "reconcile.mismatch_recorded")
}

// notifyOutcome fires the buyer email without holding up reconciliation.
func (s *Service) notifyOutcome(ctx context.Context, purchase *models.Purchase) {
	if s.mailer == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		var err error
		if purchase.AccessGranted {
			planName := ""
			if purchase.PlanName != nil {
				planName = *purchase.PlanName
			}
			err = s.mailer.SendAccessGranted(detached, notify.AccessGrantedEmail{
				To:          purchase.BuyerEmail,
				ProductType: purchase.ProductType.String(),
				PlanName:    planName,
				AccessLink:  purchases.AccessLink(s.baseURL, purchase.ID, purchase.AccessToken),
			})
		} else {
			err = s.mailer.SendPaymentFailed(detached, purchase.BuyerEmail, purchase.PaymentReference)
		}
		if err != nil {
			s.logg.Warn(s.logPurchase(detached, purchase), "reconcile.notify_failed")
		}
	}()
}

func (s *Service) result(purchase *models.Purchase, created bool) *Result {
	res := &Result{Purchase: purchase, Created: created}
	if purchase.AccessGranted {
		res.AccessLink = purchases.AccessLink(s.baseURL, purchase.ID, purchase.AccessToken)
	}
	return res
}

func (s *Service) logPurchase(ctx context.Context, purchase *models.Purchase) context.Context {
	logCtx := s.logg.WithPurchaseID(ctx, purchase.ID.String())
	return s.logg.WithReference(logCtx, purchase.PaymentReference)
}

func grantTime(purchase *models.Purchase) time.Time {
	if purchase.AccessGrantedAt != nil {
		return *purchase.AccessGrantedAt
	}
	return purchase.CreatedAt
}

// productIdentity recovers what was bought from the metadata echoed back by
// the provider.
func productIdentity(meta map[string]string) (uuid.UUID, enums.ProductType, string, *uuid.UUID, error) {
	rawID := strings.TrimSpace(meta[payments.MetaProductID])
	if rawID == "" {
		return uuid.Nil, "", "", nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction metadata is missing the product id")
	}
	productID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", "", nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction metadata carries an invalid product id")
	}

	productType, err := enums.ParseProductType(strings.TrimSpace(meta[payments.MetaProductType]))
	if err != nil {
		return uuid.Nil, "", "", nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction metadata carries an unknown product type")
	}

	planName := strings.TrimSpace(meta[payments.MetaPlanName])

	var buyerID *uuid.UUID
	if raw := strings.TrimSpace(meta[payments.MetaBuyerID]); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, "", "", nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction metadata carries an invalid buyer id")
		}
		buyerID = &parsed
	}
	return productID, productType, planName, buyerID, nil
}
