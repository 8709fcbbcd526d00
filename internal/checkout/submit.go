package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/internal/payment"
)

// SubmitRequest is the customer's payment method, address and account choice.
type SubmitRequest struct {
	Method        order.Method
	Address       order.Address
	CreateAccount bool
}

// IdempotencyKey derives the key sent to payment backends. Resubmitting the
// same draft with the same method from the same session yields the same key.
func IdempotencyKey(sessionID, fingerprint string, method order.Method) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(method))
	return hex.EncodeToString(h.Sum(nil))
}

// Submit assembles the order draft and hands it to the strategy for
// req.Method. Validation errors are returned as *order.ValidationError before
// any backend is called; backend failures are returned as *SubmitError. In
// both cases the session is ready for another attempt and no cart or order
// reference has been touched.
func (s *Service) Submit(ctx context.Context, id string, req SubmitRequest) (_ *Outcome, rerr error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if err := sess.checkMutable(); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.state = StateSubmitting
	sess.lastErr = ""
	sess.pending = nil
	sess.pendingDraft = nil
	sess.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "checkout.Submit", trace.WithAttributes(
		attribute.String("checkout.session_id", sess.ID),
		attribute.String("checkout.method", string(req.Method)),
	))
	defer func() {
		result := "ok"
		if rerr != nil {
			result = "error"
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			sess.fail(failureMessage(rerr))
		}
		s.submissions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", string(req.Method)),
			attribute.String("result", result),
		))
		span.End()
	}()

	strategy, ok := s.strategies[req.Method]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMethod, "method %q", req.Method)
	}

	q, err := s.quote(ctx, sess)
	if err != nil {
		return nil, err
	}
	draft, err := order.Assemble(order.Input{
		Items:         q.Cart.Items,
		BuildService:  q.Build.Selected,
		Shipping:      q.Shipping,
		Coupon:        q.Coupon,
		Address:       req.Address,
		CreateAccount: req.CreateAccount,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, sess.Owner, KeyShippingAddress, encodeAddress(draft.Address)); err != nil {
		zctx.From(ctx).Warn("Save shipping address", zap.Error(err))
	}

	key := IdempotencyKey(sess.ID, draft.Fingerprint(), req.Method)
	sub, err := strategy.Submit(ctx, payment.Request{Draft: draft, IdempotencyKey: key})
	if err != nil {
		return nil, &SubmitError{Message: payment.UserMessage(err), Err: err}
	}
	span.SetAttributes(attribute.String("checkout.order_id", sub.OrderID))

	lg := zctx.From(ctx).With(
		zap.String("session_id", sess.ID),
		zap.String("order_id", sub.OrderID),
		zap.String("method", string(req.Method)),
	)
	lg.Info("Order submitted", zap.String("next", string(sub.Next)))

	switch sub.Next {
	case payment.NextAwaitConfirmation:
		sess.mu.Lock()
		sess.state = StateAwaitingConfirmation
		sess.pending = sub
		sess.pendingMethod = req.Method
		sess.pendingDraft = draft
		sess.mu.Unlock()
		return &Outcome{
			State:        StateAwaitingConfirmation,
			Method:       req.Method,
			OrderID:      sub.OrderID,
			OrderNumber:  sub.OrderNumber,
			PaymentRef:   sub.PaymentRef,
			ClientSecret: sub.ClientSecret,
		}, nil
	case payment.NextRedirect:
		// Control leaves the storefront, so the account is the only effect
		// attempted here.
		s.createAccount(ctx, lg, draft)
		out := &Outcome{
			State:       StateRedirecting,
			Method:      req.Method,
			OrderID:     sub.OrderID,
			OrderNumber: sub.OrderNumber,
			PaymentRef:  sub.PaymentRef,
			RedirectURL: sub.RedirectURL,
		}
		sess.mu.Lock()
		sess.state = StateRedirecting
		sess.outcome = out
		sess.mu.Unlock()
		return out, nil
	case payment.NextComplete:
		return s.complete(ctx, lg, sess, draft, req.Method, sub), nil
	default:
		return nil, &SubmitError{
			Message: payment.GenericFailureMessage,
			Err:     errors.Errorf("unexpected next step %q", sub.Next),
		}
	}
}

// Confirm checks a card payment the customer confirmed with the processor.
// On failure the processor's message is returned as *SubmitError and the
// session goes back to ready.
func (s *Service) Confirm(ctx context.Context, id, paymentRef string) (_ *Outcome, rerr error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	switch {
	case sess.state.Busy():
		sess.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case sess.state != StateAwaitingConfirmation || sess.pending == nil:
		sess.mu.Unlock()
		return nil, ErrNothingToConfirm
	}
	sess.state = StateConfirming
	sub, method, draft := sess.pending, sess.pendingMethod, sess.pendingDraft
	sess.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "checkout.Confirm", trace.WithAttributes(
		attribute.String("checkout.session_id", sess.ID),
		attribute.String("checkout.order_id", sub.OrderID),
	))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			sess.fail(failureMessage(rerr))
		}
		span.End()
	}()

	confirmer, ok := s.strategies[method].(payment.Confirmer)
	if !ok {
		return nil, &SubmitError{
			Message: payment.GenericFailureMessage,
			Err:     errors.Errorf("%s payments have no confirmation step", method),
		}
	}
	if err := confirmer.Confirm(ctx, sub, paymentRef); err != nil {
		return nil, &SubmitError{Message: payment.UserMessage(err), Err: err}
	}

	lg := zctx.From(ctx).With(
		zap.String("session_id", sess.ID),
		zap.String("order_id", sub.OrderID),
		zap.String("method", string(method)),
	)
	lg.Info("Payment confirmed")
	return s.complete(ctx, lg, sess, draft, method, sub), nil
}

// complete runs the post-payment effects in order. Each effect is attempted
// even if an earlier one failed; failures are logged and never returned.
func (s *Service) complete(
	ctx context.Context,
	lg *zap.Logger,
	sess *Session,
	draft *order.Draft,
	method order.Method,
	sub *payment.Submission,
) *Outcome {
	s.createAccount(ctx, lg, draft)

	if err := s.store.Delete(ctx, sess.Owner, KeyCart); err != nil {
		lg.Error("Clear cart", zap.Error(err))
	}

	refs := OrderRefs{
		OrderID:     sub.OrderID,
		OrderNumber: sub.OrderNumber,
		PaymentRef:  sub.PaymentRef,
		Method:      method,
		CreatedAt:   s.now(),
	}
	if err := s.store.Set(ctx, sess.Owner, KeyOrderRefs, refs.Encode()); err != nil {
		lg.Error("Save order references", zap.Error(err))
	}

	out := &Outcome{
		State:       StateCompleted,
		Method:      method,
		OrderID:     sub.OrderID,
		OrderNumber: sub.OrderNumber,
		PaymentRef:  sub.PaymentRef,
	}
	sess.mu.Lock()
	sess.state = StateCompleted
	sess.outcome = out
	sess.pending = nil
	sess.pendingDraft = nil
	sess.mu.Unlock()

	s.completions.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(method))))
	lg.Info("Checkout completed", zap.String("order_number", sub.OrderNumber))
	return out
}

func (s *Service) createAccount(ctx context.Context, lg *zap.Logger, draft *order.Draft) {
	if draft.Account == nil || draft.Account.Password == "" {
		return
	}
	if err := s.accounts.CreateAccount(ctx, *draft.Account); err != nil {
		lg.Warn("Create customer account", zap.Error(err))
	}
}

// failureMessage is the banner text for an error that sent a session back to
// ready. Field validation errors are shown next to the fields instead.
func failureMessage(err error) string {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Message
	}
	var ve *order.ValidationError
	if errors.As(err, &ve) {
		return ""
	}
	if errors.Is(err, order.ErrEmptyItems) {
		return "Your cart is empty."
	}
	return payment.GenericFailureMessage
}
