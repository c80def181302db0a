package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/models"
)

// ErrItineraryInvalid is returned when the model kept answering with unusable itineraries.
var ErrItineraryInvalid = errors.New("model did not produce a valid itinerary")

const itineraryPromptTemplate = `Generate a travel plan for location: {location}, for {totalDays} days for {traveler} with a {budget} budget.
Give me a list of hotel options and an itinerary with one entry per day for exactly {totalDays} days.
Answer with a single JSON object and nothing else, using exactly this shape:
{
  "hotels": [
    {"name": "", "address": "", "price": "", "rating": 0, "description": ""}
  ],
  "itinerary": [
    {"day": "Day 1", "plan": [
      {"time": "", "place": "", "details": "", "ticket_pricing": ""}
    ]}
  ]
}
Every day needs at least one plan item with time, place and details filled in. Ratings are between 0 and 5.`

// ItineraryRequest holds the user's choices substituted into the prompt.
type ItineraryRequest struct {
	Location string
	Days     int
	Traveler string
	Budget   string
}

// BuildItineraryPrompt fills the itinerary template.
func BuildItineraryPrompt(req ItineraryRequest) string {
	r := strings.NewReplacer(
		"{location}", req.Location,
		"{totalDays}", strconv.Itoa(req.Days),
		"{traveler}", req.Traveler,
		"{budget}", req.Budget,
	)
	return r.Replace(itineraryPromptTemplate)
}

// ItineraryGenerator asks the model for an itinerary and validates it before handing it out.
type ItineraryGenerator struct {
	client      *Client
	validate    *validator.Validate
	maxAttempts int
	metrics     metrics.Recorder
	logger      *zap.Logger
}

// NewItineraryGenerator creates an ItineraryGenerator. maxAttempts counts the first prompt.
func NewItineraryGenerator(client *Client, maxAttempts int, recorder metrics.Recorder, logger *zap.Logger) *ItineraryGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItineraryGenerator{
		client:      client,
		validate:    validator.New(),
		maxAttempts: maxAttempts,
		metrics:     recorder,
		logger:      logger,
	}
}

// Generate sends the templated prompt in a fresh chat session. When the reply does not
// match the itinerary schema the problems are sent back in the same session and the
// model gets another try, up to maxAttempts replies in total.
func (g *ItineraryGenerator) Generate(ctx context.Context, req ItineraryRequest) (*models.Itinerary, error) {
	session := g.client.StartChat()
	prompt := BuildItineraryPrompt(req)

	var problems []string
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		reply, err := session.Send(ctx, prompt)
		if err != nil {
			g.metrics.RecordLLMCall("itinerary", "error")
			return nil, fmt.Errorf("itinerary generation failed: %w", err)
		}

		var itinerary *models.Itinerary
		itinerary, problems = g.parse(reply, req.Days)
		if len(problems) == 0 {
			g.metrics.RecordLLMCall("itinerary", "ok")
			return itinerary, nil
		}

		g.logger.Warn("Model returned an invalid itinerary",
			zap.Int("attempt", attempt),
			zap.Strings("problems", problems))
		prompt = correctionPrompt(problems, req.Days)
	}

	g.metrics.RecordLLMCall("itinerary", "invalid")
	return nil, fmt.Errorf("%w after %d attempts: %s", ErrItineraryInvalid, g.maxAttempts, strings.Join(problems, "; "))
}

// parse decodes and validates a reply. A nil problem list means the itinerary is usable.
func (g *ItineraryGenerator) parse(reply string, days int) (*models.Itinerary, []string) {
	var itinerary models.Itinerary
	if err := json.Unmarshal([]byte(StripCodeFences(reply)), &itinerary); err != nil {
		return nil, []string{fmt.Sprintf("response is not valid JSON: %v", err)}
	}

	var problems []string
	if err := g.validate.Struct(itinerary); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, []string{err.Error()}
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}
	if days > 0 && len(itinerary.Itinerary) != days {
		problems = append(problems, fmt.Sprintf("itinerary has %d days, expected %d", len(itinerary.Itinerary), days))
	}
	if len(problems) > 0 {
		return nil, problems
	}
	return &itinerary, nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Itinerary.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be between 0 and 5", field)
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}

func correctionPrompt(problems []string, days int) string {
	var b strings.Builder
	b.WriteString("Your previous answer could not be used:\n")
	for _, p := range problems {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Reply again with only the corrected JSON object, with \"hotels\" and exactly %d entries in \"itinerary\".", days)
	return b.String()
}
