package models

type SubscriptionPlan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Duration    string   `json:"duration"`
	Features    []string `json:"features"`
	Recommended bool     `json:"recommended,omitempty"`
}

// OrderSummary travels with the navigation from the plan picker to the success page.
type OrderSummary struct {
	Plan SubscriptionPlan `json:"plan"`
	User string           `json:"user,omitempty"`
}
