package models

import "time"

// Forecast is one 3-hour slot of the weather forecast.
type Forecast struct {
	Time        time.Time `json:"time"`
	TempC       float64   `json:"tempC"`
	FeelsLikeC  float64   `json:"feelsLikeC"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"` // m/s
	Rain3h      float64   `json:"rain3h"`    // mm
	Snow3h      float64   `json:"snow3h"`    // mm
	ConditionID int       `json:"conditionId"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
}

// Alert severities.
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// WeatherAlert is derived from the forecast, at most one per event and day.
type WeatherAlert struct {
	Event       string    `json:"event"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// WeatherReport is the payload of GET /trips/:tripId/weather.
type WeatherReport struct {
	Location Location       `json:"location"`
	City     string         `json:"city,omitempty"`
	Forecast []Forecast     `json:"forecast"`
	Alerts   []WeatherAlert `json:"alerts"`
}
