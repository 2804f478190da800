package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"formakit.app/cloud/internal/logger"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe receives payment provider webhooks. A completed checkout
// session triggers the download token grant for the referenced order.
func (s *Server) Stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger.Info("Stripe webhook received", logger.Fields{
		"remote_addr": r.RemoteAddr,
		"method":      r.Method,
	})

	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read webhook payload", logger.Fields{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event := stripe.Event{}
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Error("Failed to parse webhook JSON", logger.Fields{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Skip signature verification in test mode
	if os.Getenv("TEST_MODE") == "true" {
		logger.Debug("Skipping webhook signature verification (test mode)")
	} else {
		endpointSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		if endpointSecret == "" {
			logger.Error("STRIPE_WEBHOOK_SECRET environment variable not set")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		signatureHeader := r.Header.Get("Stripe-Signature")
		event, err = webhook.ConstructEvent(payload, signatureHeader, endpointSecret)
		if err != nil {
			logger.Error("Webhook signature verification failed", logger.Fields{
				"error":     err.Error(),
				"signature": signatureHeader,
			})
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		var checkoutSession stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
			logger.Error("Failed to unmarshal checkout session", logger.Fields{
				"error":    err.Error(),
				"event_id": event.ID,
			})
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := s.handleCheckoutComplete(ctx, &checkoutSession); err != nil {
			logger.Error("Failed to handle checkout completion", logger.Fields{
				"error":      err.Error(),
				"session_id": checkoutSession.ID,
			})
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	default:
		logger.Info("Unhandled webhook event type", logger.Fields{
			"event_type": event.Type,
			"event_id":   event.ID,
		})
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"received": "true"}); err != nil {
		logger.Error("Failed to encode webhook response", logger.Fields{
			"error": err.Error(),
		})
	}
}

func (s *Server) handleCheckoutComplete(ctx context.Context, session *stripe.CheckoutSession) error {
	orderID := session.Metadata["order_id"]
	if orderID == "" {
		logger.Warn("Checkout session without order_id metadata", logger.Fields{
			"session_id": session.ID,
		})
		return nil
	}

	logger.Info("Processing checkout session", logger.Fields{
		"session_id":     session.ID,
		"order_id":       orderID,
		"amount":         session.AmountTotal,
		"currency":       session.Currency,
		"payment_status": session.PaymentStatus,
	})

	if err := s.Granter.Grant(ctx, orderID); err != nil {
		return fmt.Errorf("failed to grant download tokens: %w", err)
	}

	// Best-effort; a broken audit trail must not fail the webhook
	_ = s.Audit.Record(ctx, "", "entitlement.granted", "order", orderID,
		fmt.Sprintf("stripe_session=%s", session.ID))

	s.notifyBuyer(session, orderID)

	return nil
}

// notifyBuyer emails the buyer that their downloads are ready. Failure
// is logged and dropped; the tokens are already granted.
func (s *Server) notifyBuyer(session *stripe.CheckoutSession, orderID string) {
	if s.Email == nil {
		return
	}

	var buyerEmail string
	if session.CustomerDetails != nil {
		buyerEmail = session.CustomerDetails.Email
	} else {
		buyerEmail = session.CustomerEmail
	}
	if buyerEmail == "" {
		logger.Warn("Checkout session without buyer email", logger.Fields{
			"session_id": session.ID,
		})
		return
	}

	body := fmt.Sprintf(`Hello,

Thank you for your purchase! Your downloads for order %s are ready.

Sign in at https://formakit.app/downloads to grab your files. Download
access stays valid for 30 days.

Questions? Reply to this email.

The Formakit Team`, orderID)

	if err := s.Email.Send(buyerEmail, "Your Formakit downloads are ready", body); err != nil {
		logger.Error("Failed to send download email", logger.Fields{
			"error":    err.Error(),
			"email":    buyerEmail,
			"order_id": orderID,
		})
	}
}
