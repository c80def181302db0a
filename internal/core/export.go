package core

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/example/tripplanner/internal/models"
)

var exportTemplate = template.Must(template.New("trip").Funcs(template.FuncMap{
	"notes": func(s string) template.HTML {
		// Notes are sanitized with the notes policy before they are stored.
		return template.HTML(s)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Destination}} - {{.Trip.UserSelection.NoOfDays}} day trip</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
h1 { margin-bottom: 0.2rem; }
.meta { color: #666; margin-bottom: 1.5rem; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
td, th { border: 1px solid #ddd; padding: 0.4rem; text-align: left; vertical-align: top; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>{{.Destination}}</h1>
<div class="meta">
{{.Trip.UserSelection.NoOfDays}} days · {{.Trip.UserSelection.Budget}} budget · {{.Trip.UserSelection.Traveler}}
{{if .Trip.UserSelection.StartDate}} · starting {{.Trip.UserSelection.StartDate}}{{end}}
</div>

<h2>Hotels</h2>
<table>
<tr><th>Name</th><th>Address</th><th>Price</th><th>Rating</th><th>Description</th></tr>
{{range .Trip.TripData.Hotels}}<tr><td>{{.Name}}</td><td>{{.Address}}</td><td>{{.Price}}</td><td>{{printf "%.1f" .Rating}}</td><td>{{.Description}}</td></tr>
{{end}}</table>

<h2>Itinerary</h2>
{{range .Trip.TripData.Itinerary}}<h3>{{.Day}}</h3>
<table>
<tr><th>Time</th><th>Place</th><th>Details</th><th>Tickets</th></tr>
{{range .Plan}}<tr><td>{{.Time}}</td><td>{{.Place}}</td><td>{{.Details}}</td><td>{{.TicketPricing}}</td></tr>
{{end}}</table>
{{end}}
{{if .Trip.Notes}}<h2>Journal</h2>
<div class="notes">{{notes .Trip.Notes}}</div>
{{end}}
<p class="meta">Exported {{.ExportedAt}}</p>
</body>
</html>
`))

// ExportTrip renders a printable HTML page of the trip.
func (s *tripService) ExportTrip(ctx context.Context, viewer *models.User, tripID string) ([]byte, error) {
	trip, err := s.loadVisible(ctx, viewer, tripID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = exportTemplate.Execute(&buf, struct {
		Trip        *models.Trip
		Destination string
		ExportedAt  string
	}{
		Trip:        trip,
		Destination: trip.DestinationName("Trip"),
		ExportedAt:  s.now().UTC().Format(time.RFC1123),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render trip export: %w", err)
	}
	return buf.Bytes(), nil
}
