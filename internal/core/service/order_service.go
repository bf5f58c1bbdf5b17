package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const submitLockPrefix = "checkout:lock:"

type SubmitResult struct {
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Reference     string               `json:"reference"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	RedirectURL   string               `json:"redirect_url"`
}

type OrderService struct {
	db       port.DatabaseRepository
	cache    port.CacheRepository
	payments port.PaymentGateway
	rules    domain.Rules
	currency string
	log      *slog.Logger
	now      func() time.Time
}

func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, payments port.PaymentGateway,
	rules domain.Rules, currency string, log *slog.Logger) *OrderService {
	return &OrderService{
		db:       db,
		cache:    cache,
		payments: payments,
		rules:    rules,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

// Submit creates the order for a checkout in review and requests a payment
// link. A failed attempt is counted against the order reference; once the
// count reaches the limit further attempts are refused.
func (s *OrderService) Submit(ctx context.Context, co *Checkout, cart *Cart, sel domain.Selection) (SubmitResult, error) {
	if co.Step() != domain.StepOrderReview {
		return SubmitResult{}, domain.ErrNotInReview
	}

	summary := cart.ComputeSelection(sel)
	if summary.ItemCount == 0 || summary.TotalQuantity == 0 {
		return SubmitResult{}, domain.ErrEmptyCart
	}
	if err := cart.CheckMinimums(sel); err != nil {
		return SubmitResult{}, err
	}

	ref := co.Reference()
	lockKey := submitLockPrefix + ref
	token := uuid.NewString()
	ok, err := s.cache.SetIdempotency(ctx, lockKey, token)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return SubmitResult{}, domain.ErrDuplicateRequest
	}
	defer func() {
		if err := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("release submit lock", slog.String("reference", ref), slog.Any("err", err))
		}
	}()

	// checked under the submit lock
	failures, err := s.cache.FailedAttempts(ctx, ref)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("read attempts: %w", err)
	}
	if failures >= s.rules.MaxSubmitAttempts {
		return SubmitResult{}, domain.ErrRetryLimitReached
	}

	sub := s.BuildSubmission(co, cart, sel)

	order, err := s.db.FindOrderByReference(ctx, ref)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		order, err = s.db.CreateOrder(ctx, sub)
		if err != nil {
			return SubmitResult{}, s.fail(ctx, ref, failures, "create order", err)
		}
		s.log.Info("order created", slog.String("reference", ref), slog.String("order_number", order.OrderNumber))
	case err != nil:
		return SubmitResult{}, s.fail(ctx, ref, failures, "find order", err)
	}

	result := SubmitResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Reference:     order.Reference,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		co.confirm()
		return result, nil
	}

	url, err := s.payments.CreatePaymentLink(ctx, port.PaymentLinkRequest{
		Reference:   ref,
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Customer:    sub.Customer,
		Attempt:     failures + 1,
	})
	if err != nil {
		return SubmitResult{}, s.fail(ctx, ref, failures, "create payment link", err)
	}

	co.confirm()
	result.RedirectURL = url
	return result, nil
}

// BuildSubmission assembles the order payload for the selected line items.
func (s *OrderService) BuildSubmission(co *Checkout, cart *Cart, sel domain.Selection) domain.OrderSubmission {
	draft := co.Draft()
	now := s.now()

	var shipping *domain.AddressForm
	billing := draft.BillingAddress
	if flow := co.Flow(); flow != nil {
		shipping, billing = flow.Addresses(draft)
	}

	summary := cart.ComputeSelection(sel)
	fee := s.rules.ShippingFee(summary.Subtotal, draft.DeliveryOption)

	return domain.OrderSubmission{
		OrderNumber: orderNumber(now),
		Reference:   draft.Reference,
		Customer: domain.Customer{
			Name:  billing.FullName,
			Email: billing.Email,
			Phone: billing.Phone,
		},
		Lines:           cart.Lines(sel),
		ShippingAddress: shipping,
		BillingAddress:  billing,
		DeliveryOption:  draft.DeliveryOption,
		Subtotal:        summary.Subtotal,
		ShippingFee:     fee,
		TotalAmount:     summary.Subtotal.Add(fee),
		Currency:        s.currency,
		SubmittedAt:     now,
	}
}

// HandlePaymentReturn reconciles a gateway return. A successful status marks
// the order paid if it is still pending.
func (s *OrderService) HandlePaymentReturn(ctx context.Context, reference, status string) (domain.Order, error) {
	order, err := s.db.FindOrderByReference(ctx, reference)
	if err != nil {
		return domain.Order{}, fmt.Errorf("find order %s: %w", reference, err)
	}

	if !paymentSucceeded(status) || order.PaymentStatus != domain.PaymentStatusPending {
		return order, nil
	}

	updated, err := s.db.MarkPaidIfPending(ctx, reference)
	if err != nil {
		return domain.Order{}, fmt.Errorf("mark order %s paid: %w", reference, err)
	}
	if updated {
		s.log.Info("order marked paid", slog.String("reference", reference))
	}
	order.PaymentStatus = domain.PaymentStatusPaid
	return order, nil
}

func (s *OrderService) HandlePaymentCancel(ctx context.Context, reference string) (domain.Order, error) {
	order, err := s.db.FindOrderByReference(ctx, reference)
	if err != nil {
		return domain.Order{}, fmt.Errorf("find order %s: %w", reference, err)
	}
	return order, nil
}

func (s *OrderService) RemainingAttempts(ctx context.Context, reference string) (int, error) {
	failures, err := s.cache.FailedAttempts(ctx, reference)
	if err != nil {
		return 0, err
	}
	return max(s.rules.MaxSubmitAttempts-failures, 0), nil
}

func (s *OrderService) fail(ctx context.Context, ref string, failures int, op string, cause error) error {
	attempt, err := s.cache.RecordFailedAttempt(context.WithoutCancel(ctx), ref)
	if err != nil {
		s.log.Error("record failed attempt", slog.String("reference", ref), slog.Any("err", err))
		attempt = failures + 1
	}
	s.log.Warn("order submission failed",
		slog.String("reference", ref),
		slog.String("op", op),
		slog.Int("attempt", attempt),
		slog.Any("err", cause))
	return &domain.ExternalServiceError{Op: op, Attempt: attempt, Err: cause}
}

func orderNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(id[:8]))
}

func paymentSucceeded(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful", "paid", "completed":
		return true
	default:
		return false
	}
}
