package domain

import "time"

// ============================================================
// Users
// ============================================================

// User represents an account holder as stored by the portfolio backend.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CPF       string    `json:"cpf"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserRequest is the body for POST /v1/users.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	CPF      string `json:"cpf"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the body for PUT /v1/users/{userId}/profile.
type UpdateProfileRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// SuccessResponse is a generic message body for mutations without a payload.
type SuccessResponse struct {
	Message string `json:"message"`
}

// ============================================================
// Positions
// ============================================================

// Investment type labels as the backend reports them.
const (
	InvestmentTesouroDireto = "Tesouro Direto"
	CategoryOther           = "Outros"
)

// Position represents one financial holding returned by the backend's
// position-listing endpoints. Monetary fields use Amount because the
// backend serializes them inconsistently (number or decimal string).
type Position struct {
	ID             string `json:"id"`
	InvestmentType string `json:"investment_type"`
	SubType        string `json:"sub_type,omitempty"`
	AssetName      string `json:"asset_name"`
	AssetCode      string `json:"asset_code,omitempty"`
	Quantity       Amount `json:"quantity"`
	AppliedValue   Amount `json:"applied_value"`
	PositionValue  Amount `json:"position_value"`
	NetValue       Amount `json:"net_value"`
	Price          Amount `json:"price"`
	PriceDate      string `json:"price_date,omitempty"`
}

// ============================================================
// Brokerage notes
// ============================================================

// NoteTrade is one trade line parsed out of a brokerage note PDF.
type NoteTrade struct {
	AssetCode string `json:"asset_code"`
	Side      string `json:"side"` // "buy" or "sell"
	Quantity  Amount `json:"quantity"`
	Price     Amount `json:"price"`
	Total     Amount `json:"total"`
}

// BrokerageNote is the backend parser's result for one uploaded note.
type BrokerageNote struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Broker     string      `json:"broker,omitempty"`
	TradeDate  string      `json:"trade_date,omitempty"`
	Trades     []NoteTrade `json:"trades"`
	UploadedAt time.Time   `json:"uploaded_at"`
}

// ============================================================
// Corporate events
// ============================================================

// CorporateEvent represents a split/grouping/bonus event applied to an asset.
type CorporateEvent struct {
	ID        string    `json:"id"`
	AssetCode string    `json:"asset_code"`
	EventType string    `json:"event_type"` // "split", "grouping", "bonus"
	Ratio     Amount    `json:"ratio"`
	EventDate string    `json:"event_date"`
	AppliedAt time.Time `json:"applied_at,omitempty"`
}

// ApplyEventRequest is the body for POST /v1/users/{userId}/events.
type ApplyEventRequest struct {
	AssetCode string  `json:"asset_code"`
	EventType string  `json:"event_type"`
	Ratio     float64 `json:"ratio"`
	EventDate string  `json:"event_date"`
}

// ============================================================
// Rebalancing
// ============================================================

// RebalanceAction is one recommended adjustment in a rebalance plan.
type RebalanceAction struct {
	AssetCode string `json:"asset_code"`
	Action    string `json:"action"` // "buy" or "sell"
	Quantity  Amount `json:"quantity"`
	Value     Amount `json:"value"`
	Reason    string `json:"reason,omitempty"`
}

// RebalancePlan is the backend's rebalancing recommendation for a user.
type RebalancePlan struct {
	UserID      string            `json:"user_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Actions     []RebalanceAction `json:"actions"`
}
