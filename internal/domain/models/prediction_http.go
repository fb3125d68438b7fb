package models

// Requests for prediction HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
}

type RefreshRequest struct {
	Symbol       string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
	From         string `query:"from" json:"from"`
	To           string `query:"to" json:"to"`
	LookbackDays int    `query:"lookback_days" json:"lookback_days" validate:"omitempty,gte=1,lte=3650"`
}
