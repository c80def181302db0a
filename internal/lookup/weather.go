package lookup

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/tripplanner/internal/models"
)

// Alert thresholds applied to every 3-hour forecast slot.
const (
	HeatThresholdC       = 35.0
	FreezingThresholdC   = 0.0
	HeavyRainThresholdMM = 10.0
	HeavySnowThresholdMM = 5.0
	StrongWindThreshold  = 10.0 // m/s

	forecastSlot = 3 * time.Hour
)

// WeatherClient reads the 5 day / 3 hour forecast from OpenWeather.
type WeatherClient struct {
	fetcher
	baseURL string
	apiKey  string
}

// NewWeatherClient creates a WeatherClient.
func NewWeatherClient(baseURL, apiKey string, opts Options) *WeatherClient {
	return &WeatherClient{
		fetcher: newFetcher("openweather", opts),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type owmForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			ID          int    `json:"id"`
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain struct {
			ThreeHours float64 `json:"3h"`
		} `json:"rain"`
		Snow struct {
			ThreeHours float64 `json:"3h"`
		} `json:"snow"`
	} `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// Forecast returns the forecast slots for the coordinates together with the city name.
func (c *WeatherClient) Forecast(ctx context.Context, lat, lon float64) ([]models.Forecast, string, error) {
	if c.apiKey == "" {
		return nil, "", fmt.Errorf("openweather: %w", ErrNotConfigured)
	}

	latS := strconv.FormatFloat(lat, 'f', 4, 64)
	lonS := strconv.FormatFloat(lon, 'f', 4, 64)

	type cachedForecast struct {
		City     string            `json:"city"`
		Forecast []models.Forecast `json:"forecast"`
	}
	key := c.cacheKey(latS, lonS)
	var hit cachedForecast
	if c.cached(ctx, key, &hit) {
		return hit.Forecast, hit.City, nil
	}

	q := url.Values{}
	q.Set("lat", latS)
	q.Set("lon", lonS)
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	var res owmForecast
	if err := c.getJSON(ctx, c.baseURL+"/data/2.5/forecast?"+q.Encode(), &res); err != nil {
		return nil, "", err
	}

	out := make([]models.Forecast, 0, len(res.List))
	for _, slot := range res.List {
		f := models.Forecast{
			Time:       time.Unix(slot.Dt, 0).UTC(),
			TempC:      slot.Main.Temp,
			FeelsLikeC: slot.Main.FeelsLike,
			Humidity:   slot.Main.Humidity,
			WindSpeed:  slot.Wind.Speed,
			Rain3h:     slot.Rain.ThreeHours,
			Snow3h:     slot.Snow.ThreeHours,
		}
		if len(slot.Weather) > 0 {
			f.ConditionID = slot.Weather[0].ID
			f.Condition = slot.Weather[0].Main
			f.Description = slot.Weather[0].Description
			f.Icon = slot.Weather[0].Icon
		}
		out = append(out, f)
	}
	c.store(ctx, key, cachedForecast{City: res.City.Name, Forecast: out})
	return out, res.City.Name, nil
}

// Report fetches the forecast for loc and derives its alerts.
func (c *WeatherClient) Report(ctx context.Context, loc models.Location) (*models.WeatherReport, error) {
	if loc.Lat == 0 && loc.Lon == 0 {
		return nil, fmt.Errorf("location %q has no coordinates: %w", loc.Label, ErrNoResult)
	}
	forecast, city, err := c.Forecast(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return nil, err
	}
	return &models.WeatherReport{
		Location: loc,
		City:     city,
		Forecast: forecast,
		Alerts:   DeriveAlerts(forecast),
	}, nil
}

// DeriveAlerts scans the forecast for extreme conditions. Only the first alert of each
// event per calendar day (UTC) is kept, in forecast order.
func DeriveAlerts(forecast []models.Forecast) []models.WeatherAlert {
	alerts := []models.WeatherAlert{}
	seen := make(map[string]bool)

	add := func(f models.Forecast, event, severity, description string) {
		key := event + "|" + f.Time.UTC().Format("2006-01-02")
		if seen[key] {
			return
		}
		seen[key] = true
		alerts = append(alerts, models.WeatherAlert{
			Event:       event,
			Severity:    severity,
			Description: description,
			Start:       f.Time,
			End:         f.Time.Add(forecastSlot),
		})
	}

	for _, f := range forecast {
		day := f.Time.UTC().Format("2006-01-02")
		if f.TempC >= HeatThresholdC {
			add(f, "Extreme Heat Warning", models.SeverityModerate,
				fmt.Sprintf("Temperatures expected to reach %.0f°C on %s. Stay hydrated and avoid prolonged sun exposure.", math.Round(f.TempC), day))
		}
		if f.TempC <= FreezingThresholdC {
			add(f, "Freezing Temperature Alert", models.SeverityModerate,
				fmt.Sprintf("Temperatures expected to drop to %.0f°C on %s. Dress warmly and be cautious of icy conditions.", math.Round(f.TempC), day))
		}
		if f.Rain3h >= HeavyRainThresholdMM {
			add(f, "Heavy Rainfall Warning", models.SeverityModerate,
				fmt.Sprintf("Heavy rainfall of %gmm expected on %s. Be prepared for flooding and difficult travel conditions.", f.Rain3h, day))
		}
		if f.Snow3h >= HeavySnowThresholdMM {
			add(f, "Heavy Snowfall Warning", models.SeverityModerate,
				fmt.Sprintf("Heavy snowfall of %gmm expected on %s. Be prepared for difficult travel conditions and closures.", f.Snow3h, day))
		}
		if f.WindSpeed >= StrongWindThreshold {
			add(f, "Strong Wind Advisory", models.SeverityMinor,
				fmt.Sprintf("Strong winds of %.0fm/s expected on %s. Secure loose objects and be cautious when traveling.", math.Round(f.WindSpeed), day))
		}
		if f.ConditionID >= 200 && f.ConditionID < 300 {
			add(f, "Thunderstorm Warning", models.SeveritySevere,
				fmt.Sprintf("Thunderstorms expected on %s. Seek shelter indoors and avoid open areas.", day))
		}
	}
	return alerts
}
