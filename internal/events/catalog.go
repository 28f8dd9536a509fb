package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type names double as bus topics; consumers subscribe by them.
const (
	TypeUserRegistered         = "UserRegistered"
	TypeResetPasswordOtp       = "ResetPasswordOtp"
	TypeNotificationRequested  = "NotificationRequested"
	TypePaymentIntentRequested = "PaymentIntentRequested"
	TypePaymentIntentCreated   = "PaymentIntentCreated"
	TypePaymentSucceeded       = "PaymentSucceeded"
	TypePaymentFailed          = "PaymentFailed"
)

type UserRegistered struct {
	Base
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

type ResetPasswordOtp struct {
	Base
	Email     string    `json:"email"`
	Otp       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NotificationRequested asks the notification service to fan a message out to
// a set of recipients on one channel.
type NotificationRequested struct {
	Base
	Channel    string            `json:"channel"`
	Recipients []string          `json:"recipients"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Template   string            `json:"template,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// PaymentIntentRequested asks the payment service to open an intent with the
// configured gateway on behalf of another service.
type PaymentIntentRequested struct {
	Base
	ReferenceID uuid.UUID         `json:"reference_id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type PaymentIntentCreated struct {
	Base
	PaymentTransactionID uuid.UUID `json:"payment_transaction_id"`
	ReferenceID          uuid.UUID `json:"reference_id"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
	GatewayName          string    `json:"gateway_name"`
}

type PaymentSucceeded struct {
	Base
	PaymentTransactionID uuid.UUID `json:"payment_transaction_id"`
	GatewayReference     string    `json:"gateway_reference"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
}

type PaymentFailed struct {
	Base
	PaymentTransactionID uuid.UUID `json:"payment_transaction_id"`
	GatewayReference     string    `json:"gateway_reference,omitempty"`
	Reason               string    `json:"reason"`
}
