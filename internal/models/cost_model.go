package models

// CostBreakdown is the estimate returned by the language model, in BDT.
// Accommodation, Food and Activities are per day; Transportation covers the whole trip.
type CostBreakdown struct {
	Accommodation  float64 `json:"accommodation"`
	Food           float64 `json:"food"`
	Transportation float64 `json:"transportation"`
	Activities     float64 `json:"activities"`
}

// CostSummary scales a breakdown to the trip length and party size.
type CostSummary struct {
	Breakdown      CostBreakdown `json:"breakdown"`
	Days           int           `json:"days"`
	Travelers      int           `json:"travelers"`
	Accommodation  float64       `json:"accommodation"`
	Food           float64       `json:"food"`
	Transportation float64       `json:"transportation"`
	Activities     float64       `json:"activities"`
	PerPerson      float64       `json:"perPerson"`
	Total          float64       `json:"total"`
	Currency       string        `json:"currency"`
}

// CostEstimateResponse mirrors the {success, data, error, rawResponse} contract of the estimator.
type CostEstimateResponse struct {
	Success     bool         `json:"success"`
	Data        *CostSummary `json:"data,omitempty"`
	Error       string       `json:"error,omitempty"`
	RawResponse string       `json:"rawResponse,omitempty"`
}

// CostEstimateRequest optionally overrides the trip's own selection.
type CostEstimateRequest struct {
	Travelers int `json:"travelers"`
}
