package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/models"
)

// CostCurrency is the currency every estimate is expressed in.
const CostCurrency = "BDT"

// The worked example the cost session is primed with.
var costPrimer = []llms.MessageContent{
	llms.TextParts(llms.ChatMessageTypeHuman,
		"Generate cost estimates for a trip to Cox's Bazar, Bangladesh for 3 days with a moderate budget level. "+
			"Include accommodation, food, transportation, and activities costs."),
	llms.TextParts(llms.ChatMessageTypeAI,
		"```json\n{\n  \"accommodation\": 3000,\n  \"food\": 1200,\n  \"transportation\": 4500,\n  \"activities\": 800\n}\n```\n\n"+
			"These estimates are for a moderate budget in Cox's Bazar:\n\n"+
			"- **Accommodation**: 3000 BDT per night for a mid-range hotel or resort\n"+
			"- **Food**: 1200 BDT per day for local restaurants and a few nicer meals\n"+
			"- **Transportation**: 4500 BDT in total for the round trip from Dhaka and local transport\n"+
			"- **Activities**: 800 BDT per day for standard paid attractions and some guided tours"),
}

const costPromptTemplate = `I need detailed cost estimates for a trip to %[1]s, Bangladesh with a %[2]s budget level for %[3]d days.

1. ACCOMMODATION: the cost per night for a %[2]s budget in %[1]s.
   cheap: hostels, guesthouses or budget hotels. moderate: mid-range hotels or resorts. luxury: premium hotels or resorts.
2. FOOD: the daily food cost for a %[2]s budget in %[1]s.
   cheap: street food and local eateries. moderate: local restaurants and some nicer options. luxury: fine dining.
3. TRANSPORTATION: the round trip from Dhaka to %[1]s plus local transport for the whole stay, for a %[2]s budget.
4. ACTIVITIES: the daily cost of attractions and activities in %[1]s for a %[2]s budget.

Format your response as a JSON object with exactly these keys: accommodation, food, transportation, activities.
Each value must be a NUMBER in BDT without text or currency symbols.
accommodation, food and activities are PER DAY costs. transportation is the TOTAL for the trip including travel from Dhaka.

Example: {"accommodation": 2000, "food": 800, "transportation": 5000, "activities": 500}

Your response must be a valid JSON object and nothing else.`

// CostRequest describes the trip to estimate.
type CostRequest struct {
	Destination string
	Days        int
	Budget      string
}

// CostEstimate is a parsed estimate together with the text it was extracted from.
type CostEstimate struct {
	Breakdown models.CostBreakdown
	Raw       string
	Tier      string
}

// CostEstimator asks the model for per-category trip costs.
type CostEstimator struct {
	client  *Client
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewCostEstimator creates a CostEstimator.
func NewCostEstimator(client *Client, recorder metrics.Recorder, logger *zap.Logger) *CostEstimator {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CostEstimator{client: client, metrics: recorder, logger: logger}
}

// BuildCostPrompt fills the cost template. Only the part of the destination before the
// first comma is used.
func BuildCostPrompt(req CostRequest) string {
	destination := strings.TrimSpace(strings.SplitN(req.Destination, ",", 2)[0])
	days := req.Days
	if days < 1 {
		days = 1
	}
	budget := strings.TrimSpace(req.Budget)
	if budget == "" {
		budget = "moderate"
	}
	return fmt.Sprintf(costPromptTemplate, destination, budget, days)
}

// Estimate runs one primed exchange and extracts the breakdown. When the reply cannot be
// parsed the error is an *ExtractionError holding the raw text.
func (e *CostEstimator) Estimate(ctx context.Context, req CostRequest) (*CostEstimate, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return nil, fmt.Errorf("no destination specified")
	}

	session := e.client.StartChat(costPrimer...)
	reply, err := session.Send(ctx, BuildCostPrompt(req))
	if err != nil {
		e.metrics.RecordLLMCall("cost", "error")
		return nil, fmt.Errorf("error generating cost estimates: %w", err)
	}

	breakdown, tier, err := ExtractCostBreakdown(reply)
	e.metrics.RecordExtractionTier(tier)
	if err != nil {
		e.metrics.RecordLLMCall("cost", "invalid")
		e.logger.Warn("Could not extract cost estimate", zap.String("destination", req.Destination), zap.Error(err))
		return nil, err
	}
	e.metrics.RecordLLMCall("cost", "ok")
	return &CostEstimate{Breakdown: *breakdown, Raw: reply, Tier: tier}, nil
}

// Summarize scales a breakdown to the trip. Accommodation, food and activities are
// multiplied by the number of days, transportation is counted once, and the sum is
// multiplied by the number of travelers.
func Summarize(b models.CostBreakdown, days, travelers int) models.CostSummary {
	if days < 1 {
		days = 1
	}
	if travelers < 1 {
		travelers = 1
	}
	s := models.CostSummary{
		Breakdown:      b,
		Days:           days,
		Travelers:      travelers,
		Accommodation:  b.Accommodation * float64(days),
		Food:           b.Food * float64(days),
		Transportation: b.Transportation,
		Activities:     b.Activities * float64(days),
		Currency:       CostCurrency,
	}
	s.PerPerson = s.Accommodation + s.Food + s.Transportation + s.Activities
	s.Total = s.PerPerson * float64(travelers)
	return s
}
