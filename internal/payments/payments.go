package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/craftora/marketplace/internal/logging"
)

type Intent struct {
	ID           string  `json:"id"`
	ClientSecret string  `json:"client_secret"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Provider abstracts the payment processor so the mock can stand in for a
// real gateway.
type Provider interface {
	CreateIntent(ctx context.Context, amount float64, currency, orderNumber string) (*Intent, error)
	Confirm(ctx context.Context, intentID string) (string, error)
	Refund(ctx context.Context, intentID string, amount float64) (*Refund, error)
}

// MockProvider simulates a processor; ids follow the pi_/re_ conventions so
// clients exercise the same shapes they would see in production.
type MockProvider struct{}

func (MockProvider) CreateIntent(ctx context.Context, amount float64, currency, orderNumber string) (*Intent, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if currency == "" {
		currency = "usd"
	}
	id := "pi_" + randomToken()
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + randomToken(),
		Amount:       amount,
		Currency:     currency,
		Status:       "requires_payment_method",
	}
	logging.FromContext(ctx).Info("payment intent created", "intent_id", intent.ID, "order_number", orderNumber)
	return intent, nil
}

func (MockProvider) Confirm(ctx context.Context, intentID string) (string, error) {
	if !strings.HasPrefix(intentID, "pi_") {
		return "", fmt.Errorf("unknown payment intent %q", intentID)
	}
	logging.FromContext(ctx).Info("payment confirmed", "intent_id", intentID)
	return "succeeded", nil
}

func (MockProvider) Refund(ctx context.Context, intentID string, amount float64) (*Refund, error) {
	if !strings.HasPrefix(intentID, "pi_") {
		return nil, fmt.Errorf("unknown payment intent %q", intentID)
	}
	r := &Refund{ID: "re_" + randomToken(), Status: "succeeded"}
	logging.FromContext(ctx).Info("refund created", "refund_id", r.ID, "intent_id", intentID, "amount", amount)
	return r, nil
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
