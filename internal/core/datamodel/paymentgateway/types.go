package paymentgateway

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ResponseStatusSuccess = "success"
	ResponseStatusError   = "error"
)

// Transaction statuses reported inside a verification response.
const (
	TransactionSuccessful = "successful"
	TransactionFailed     = "failed"
	TransactionPending    = "pending"
)

type SessionRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         json.Number       `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	PaymentOptions string            `json:"payment_options"`
	Customer       Customer          `json:"customer"`
	Customizations Customizations    `json:"customizations"`
	Meta           map[string]string `json:"meta,omitempty"`
}

func (r *SessionRequest) Validate() error {
	if r.TxRef == "" {
		return errors.New("tx_ref is required")
	}
	amount, err := decimal.NewFromString(r.Amount.String())
	if err != nil || !amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.RedirectURL == "" {
		return errors.New("redirect_url is required")
	}
	if r.Customer.Email == "" {
		return errors.New("customer email is required")
	}
	return nil
}

type Customer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber,omitempty"`
	Name        string `json:"name,omitempty"`
}

type Customizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

type SessionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

type VerifyResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    *VerifyData `json:"data"`
}

type VerifyData struct {
	ID       json.RawMessage `json:"id"`
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Customer struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer"`
}

// SessionResult is a hosted checkout session the payer can be redirected to.
type SessionResult struct {
	Link    string
	RawBody json.RawMessage
}

// Verification is the gateway's authoritative view of a transaction.
type Verification struct {
	Settled       bool
	ResponseState string
	Status        string
	Message       string
	TxRef         string
	GatewayTxID   string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	CustomerName  string
	RawBody       json.RawMessage
}

// ExplicitlyFailed reports whether the gateway says the charge will not succeed,
// as opposed to one still in flight.
func (v *Verification) ExplicitlyFailed() bool {
	if v.Settled {
		return false
	}
	if v.ResponseState != ResponseStatusSuccess {
		return true
	}
	return v.Status != TransactionPending && v.Status != ""
}

// IDString renders a JSON id that may arrive as a number or a string.
func IDString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
