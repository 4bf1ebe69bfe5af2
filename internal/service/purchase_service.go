package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

// Hotmart event names handled by the webhook.
const (
	HotmartPurchaseApproved         = "PURCHASE_APPROVED"
	HotmartPurchaseComplete         = "PURCHASE_COMPLETE"
	HotmartPurchaseCanceled         = "PURCHASE_CANCELED"
	HotmartPurchaseRefunded         = "PURCHASE_REFUNDED"
	HotmartPurchaseChargeback       = "PURCHASE_CHARGEBACK"
	HotmartSubscriptionCancellation = "SUBSCRIPTION_CANCELLATION"
)

// Webhook outcomes.
const (
	WebhookActivated   = "activated"
	WebhookDeactivated = "deactivated"
	WebhookDuplicate   = "duplicate"
	WebhookIgnored     = "ignored"

	// WebhookRecorded means the purchase was updated but the member kept
	// access granted by another purchase.
	WebhookRecorded = "recorded"
)

// HotmartEvent is the subset of the Hotmart v2 webhook payload the service reads.
type HotmartEvent struct {
	ID           string `json:"id"`
	Event        string `json:"event"`
	CreationDate int64  `json:"creation_date"`
	Data         struct {
		Product struct {
			ID   flexibleID `json:"id"`
			Name string     `json:"name"`
		} `json:"product"`
		Buyer struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"buyer"`
		Purchase struct {
			Transaction  string `json:"transaction"`
			Status       string `json:"status"`
			ApprovedDate int64  `json:"approved_date"`
			Price        struct {
				Value    decimal.Decimal `json:"value"`
				Currency string          `json:"currency_value"`
			} `json:"price"`
		} `json:"purchase"`
		Subscription struct {
			Subscriber struct {
				Code string `json:"code"`
			} `json:"subscriber"`
		} `json:"subscription"`
	} `json:"data"`
}

// flexibleID accepts a JSON number or string and keeps its textual form.
type flexibleID string

func (j *flexibleID) UnmarshalJSON(b []byte) error {
	*j = flexibleID(strings.Trim(string(b), `"`))
	return nil
}

// WebhookResult reports what the webhook did with an event.
type WebhookResult struct {
	Action string
	UserID int64
	// TemporaryPassword is set only when a new account was created.
	TemporaryPassword string
}

type HotmartConfig struct {
	Hottok       string
	PlanDuration time.Duration
	// Products maps Hotmart product ids to plans.
	Products map[string]domain.Plan
}

// PurchaseService ingests payment events and provisions member accounts.
type PurchaseService interface {
	HandleHotmart(ctx context.Context, token string, evt HotmartEvent) (*WebhookResult, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Purchase, error)
}

type purchaseService struct {
	cfg           HotmartConfig
	users         repository.UserRepository
	purchases     repository.PurchaseRepository
	notifications repository.NotificationRepository
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewPurchaseService(cfg HotmartConfig, users repository.UserRepository, purchases repository.PurchaseRepository, notifications repository.NotificationRepository, log logrus.FieldLogger) PurchaseService {
	if cfg.PlanDuration <= 0 {
		cfg.PlanDuration = 365 * 24 * time.Hour
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &purchaseService{
		cfg:           cfg,
		users:         users,
		purchases:     purchases,
		notifications: notifications,
		log:           log,
		now:           time.Now,
	}
}

// ParseProducts converts a product id → plan name map from configuration.
func ParseProducts(raw map[string]string) (map[string]domain.Plan, error) {
	out := make(map[string]domain.Plan, len(raw))
	for id, name := range raw {
		plan := domain.Plan(strings.ToUpper(strings.TrimSpace(name)))
		if !plan.Valid() || plan == domain.PlanAdmin {
			return nil, invalid("products", "product %s maps to unknown plan %q", id, name)
		}
		out[strings.TrimSpace(id)] = plan
	}
	return out, nil
}

func (s *purchaseService) HandleHotmart(ctx context.Context, token string, evt HotmartEvent) (*WebhookResult, error) {
	if s.cfg.Hottok == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.cfg.Hottok)) != 1 {
		return nil, ErrInvalidWebhookToken
	}

	event := strings.ToUpper(strings.TrimSpace(evt.Event))
	transaction := strings.TrimSpace(evt.Data.Purchase.Transaction)
	email := normalizeEmail(evt.Data.Buyer.Email)
	logger := s.log.WithFields(logrus.Fields{"event": event, "transaction": transaction})

	var status domain.PurchaseStatus
	switch event {
	case HotmartPurchaseApproved, HotmartPurchaseComplete:
		status = domain.PurchaseStatusApproved
	case HotmartPurchaseCanceled, HotmartSubscriptionCancellation:
		status = domain.PurchaseStatusCanceled
	case HotmartPurchaseRefunded:
		status = domain.PurchaseStatusRefunded
	case HotmartPurchaseChargeback:
		status = domain.PurchaseStatusChargeback
	default:
		logger.Info("ignoring hotmart event")
		return &WebhookResult{Action: WebhookIgnored}, nil
	}

	if transaction == "" {
		return nil, invalid("transaction", "purchase transaction is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	existing, err := s.purchases.GetByTransaction(ctx, transaction)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	occurredAt := eventTime(evt)

	if existing != nil {
		seen, err := s.purchases.HasEvent(ctx, transaction, event)
		if err != nil {
			return nil, err
		}
		if seen || existing.LastEvent == event {
			logger.Info("duplicate hotmart event")
			return &WebhookResult{Action: WebhookDuplicate, UserID: existing.UserID}, nil
		}

		latest, err := s.purchases.LatestEventAt(ctx, transaction)
		if err != nil {
			return nil, err
		}
		newer := !occurredAt.IsZero() && !latest.IsZero() && occurredAt.After(latest)
		if !occurredAt.IsZero() && !latest.IsZero() && occurredAt.Before(latest) {
			logger.Info("ignoring out-of-order hotmart event")
			return &WebhookResult{Action: WebhookIgnored, UserID: existing.UserID}, nil
		}
		if status == domain.PurchaseStatusApproved && existing.Status.Terminal() && !newer {
			logger.WithField("purchase_status", existing.Status).Info("ignoring approval for closed purchase")
			return &WebhookResult{Action: WebhookIgnored, UserID: existing.UserID}, nil
		}

		if existing.Status == status {
			// e.g. PURCHASE_COMPLETE after PURCHASE_APPROVED
			existing.LastEvent = event
			if err := s.purchases.Update(ctx, existing); err != nil {
				return nil, err
			}
			if err := s.purchases.RecordEvent(ctx, transaction, event, occurredAt); err != nil {
				return nil, err
			}
			return &WebhookResult{Action: WebhookDuplicate, UserID: existing.UserID}, nil
		}
	}

	var result *WebhookResult
	if status == domain.PurchaseStatusApproved {
		result, err = s.activate(ctx, logger, evt, event, email, existing)
	} else {
		result, err = s.deactivate(ctx, logger, evt, event, status, email, existing)
	}
	if err != nil {
		return nil, err
	}
	if result.Action != WebhookIgnored {
		if err := s.purchases.RecordEvent(ctx, transaction, event, occurredAt); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// eventTime is the provider's creation timestamp, zero when absent.
func eventTime(evt HotmartEvent) time.Time {
	if evt.CreationDate <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(evt.CreationDate).UTC()
}

func (s *purchaseService) activate(ctx context.Context, logger logrus.FieldLogger, evt HotmartEvent, event, email string, existing *domain.Purchase) (*WebhookResult, error) {
	productID := string(evt.Data.Product.ID)
	plan, ok := s.cfg.Products[productID]
	if !ok {
		logger.WithField("product_id", productID).Warn("hotmart product not mapped to a plan")
		return &WebhookResult{Action: WebhookIgnored}, nil
	}

	approvedAt := s.now().UTC()
	if evt.Data.Purchase.ApprovedDate > 0 {
		approvedAt = time.UnixMilli(evt.Data.Purchase.ApprovedDate).UTC()
	}
	expiration := approvedAt.Add(s.cfg.PlanDuration)

	user, temporary, err := s.upsertMember(ctx, evt, email, plan, expiration)
	if err != nil {
		return nil, err
	}

	if err := s.recordPurchase(ctx, evt, event, domain.PurchaseStatusApproved, user.ID, plan, approvedAt, existing); err != nil {
		return nil, err
	}

	s.notify(ctx, logger, domain.Notification{
		UserID:   user.ID,
		Title:    "Acesso liberado",
		Message:  "Sua assinatura " + string(plan) + " está ativa até " + expiration.Format("02/01/2006") + ".",
		Type:     domain.NotificationSuccess,
		Category: "assinatura",
	})
	logger.WithField("user_id", user.ID).Info("member activated")
	return &WebhookResult{Action: WebhookActivated, UserID: user.ID, TemporaryPassword: temporary}, nil
}

func (s *purchaseService) upsertMember(ctx context.Context, evt HotmartEvent, email string, plan domain.Plan, expiration time.Time) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsAdmin() {
			user.Plan = plan
		}
		user.Status = domain.UserStatusActive
		if user.ExpirationDate == nil || user.ExpirationDate.Before(expiration) {
			user.ExpirationDate = &expiration
		}
		if code := evt.Data.Subscription.Subscriber.Code; code != "" {
			user.HotmartCustomerID = code
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, "", err
		}
		return user, "", nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", err
	}

	first, last := splitName(evt.Data.Buyer.Name)
	temporary := TemporaryPassword()
	hash, err := hashPassword(temporary)
	if err != nil {
		return nil, "", err
	}
	user = &domain.User{
		Email:              email,
		FirstName:          first,
		LastName:           last,
		PasswordHash:       hash,
		Plan:               plan,
		Status:             domain.UserStatusActive,
		ExpirationDate:     &expiration,
		MustChangePassword: true,
		HotmartCustomerID:  evt.Data.Subscription.Subscriber.Code,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// Concurrent delivery created the account first.
			return s.upsertMember(ctx, evt, email, plan, expiration)
		}
		return nil, "", err
	}
	return user, temporary, nil
}

// deactivate closes a purchase and removes access only when that purchase is
// what currently grants the member's plan.
func (s *purchaseService) deactivate(ctx context.Context, logger logrus.FieldLogger, evt HotmartEvent, event string, status domain.PurchaseStatus, email string, existing *domain.Purchase) (*WebhookResult, error) {
	productID := string(evt.Data.Product.ID)
	mapped, isMapped := s.cfg.Products[productID]
	if existing == nil && !isMapped {
		logger.WithField("product_id", productID).Info("ignoring cancellation for unmapped product")
		return &WebhookResult{Action: WebhookIgnored}, nil
	}

	var (
		user *domain.User
		err  error
	)
	if existing != nil {
		user, err = s.users.GetByID(ctx, existing.UserID)
	} else {
		user, err = s.users.GetByEmail(ctx, email)
	}
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("no member for cancelled purchase")
		return &WebhookResult{Action: WebhookIgnored}, nil
	}
	if err != nil {
		return nil, err
	}

	plan := user.Plan
	if existing != nil {
		plan = existing.Plan
	} else if isMapped {
		plan = mapped
	}
	if err := s.recordPurchase(ctx, evt, event, status, user.ID, plan, s.now().UTC(), existing); err != nil {
		return nil, err
	}

	grants, err := s.grantsCurrentPlan(ctx, user, plan, existing != nil, evt.Data.Purchase.Transaction)
	if err != nil {
		return nil, err
	}
	if !grants {
		logger.WithField("user_id", user.ID).Info("purchase closed, member keeps access from another purchase")
		return &WebhookResult{Action: WebhookRecorded, UserID: user.ID}, nil
	}

	if !user.IsAdmin() && user.Status != domain.UserStatusInactive {
		user.Status = domain.UserStatusInactive
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	s.notify(ctx, logger, domain.Notification{
		UserID:   user.ID,
		Title:    "Assinatura encerrada",
		Message:  "Sua assinatura foi encerrada. Em caso de dúvidas, fale com o suporte.",
		Type:     domain.NotificationWarning,
		Category: "assinatura",
	})
	logger.WithField("user_id", user.ID).Info("member deactivated")
	return &WebhookResult{Action: WebhookDeactivated, UserID: user.ID}, nil
}

// grantsCurrentPlan reports whether transaction is what keeps user on its
// current plan: it must match that plan, and no other approved purchase may
// still be within its plan period.
func (s *purchaseService) grantsCurrentPlan(ctx context.Context, user *domain.User, plan domain.Plan, recorded bool, transaction string) (bool, error) {
	if !recorded && plan != user.Plan {
		return false, nil
	}
	purchases, err := s.purchases.ListByUser(ctx, user.ID)
	if err != nil {
		return false, err
	}
	now := s.now()
	transaction = strings.TrimSpace(transaction)
	for _, p := range purchases {
		if p.Transaction == transaction || p.Status != domain.PurchaseStatusApproved {
			continue
		}
		if p.Plan == user.Plan && p.PurchasedAt.Add(s.cfg.PlanDuration).After(now) {
			return false, nil
		}
	}
	return true, nil
}

func (s *purchaseService) recordPurchase(ctx context.Context, evt HotmartEvent, event string, status domain.PurchaseStatus, userID int64, plan domain.Plan, at time.Time, existing *domain.Purchase) error {
	if existing != nil {
		existing.LastEvent = event
		existing.Status = status
		existing.UserID = userID
		return s.purchases.Update(ctx, existing)
	}
	p := &domain.Purchase{
		UserID:      userID,
		Transaction: strings.TrimSpace(evt.Data.Purchase.Transaction),
		LastEvent:   event,
		ProductID:   string(evt.Data.Product.ID),
		ProductName: evt.Data.Product.Name,
		Plan:        plan,
		Amount:      evt.Data.Purchase.Price.Value,
		Currency:    evt.Data.Purchase.Price.Currency,
		Status:      status,
		PurchasedAt: at,
	}
	if _, err := s.purchases.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

func (s *purchaseService) notify(ctx context.Context, logger logrus.FieldLogger, n domain.Notification) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.Create(ctx, &n); err != nil {
		logger.WithError(err).Warn("create purchase notification")
	}
}

func (s *purchaseService) ListByUser(ctx context.Context, userID int64) ([]domain.Purchase, error) {
	return s.purchases.ListByUser(ctx, userID)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
