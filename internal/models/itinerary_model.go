package models

// Itinerary is the structured plan generated for a trip and stored as Trip.TripData.
type Itinerary struct {
	Hotels    []Hotel   `json:"hotels" firestore:"hotels" validate:"required,min=1,dive"`
	Itinerary []DayPlan `json:"itinerary" firestore:"itinerary" validate:"required,min=1,dive"`
}

// Hotel is one accommodation option.
type Hotel struct {
	Name        string  `json:"name" firestore:"name" validate:"required"`
	Address     string  `json:"address" firestore:"address" validate:"required"`
	Price       string  `json:"price" firestore:"price" validate:"required"`
	Rating      float64 `json:"rating" firestore:"rating" validate:"gte=0,lte=5"`
	Description string  `json:"description,omitempty" firestore:"description,omitempty"`
}

// DayPlan groups the visits of one day.
type DayPlan struct {
	Day  string     `json:"day" firestore:"day" validate:"required"`
	Plan []PlanItem `json:"plan" firestore:"plan" validate:"required,min=1,dive"`
}

// PlanItem is a single visit.
type PlanItem struct {
	Time          string `json:"time" firestore:"time" validate:"required"`
	Place         string `json:"place" firestore:"place" validate:"required"`
	Details       string `json:"details" firestore:"details" validate:"required"`
	TicketPricing string `json:"ticket_pricing,omitempty" firestore:"ticket_pricing,omitempty"`
}
