package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Location is the place picked by the user, as returned by the geocoder.
type Location struct {
	Label       string  `json:"label" firestore:"label" validate:"required"`
	DisplayName string  `json:"display_name,omitempty" firestore:"display_name,omitempty"`
	Lat         float64 `json:"lat,omitempty" firestore:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty" firestore:"lon,omitempty"`
}

// UserSelection holds the form values a trip was generated from.
type UserSelection struct {
	Location  Location `json:"location" firestore:"location"`
	StartDate string   `json:"startDate" firestore:"startDate"` // YYYY-MM-DD
	NoOfDays  int      `json:"noOfDays" firestore:"noOfDays"`
	Budget    string   `json:"budget" firestore:"budget"`
	Traveler  string   `json:"traveler" firestore:"traveler"`
}

// TravelerCount reads the leading number of the traveler choice ("2 People", "3 to 5 People").
// It returns 1 when the choice holds no number.
func (s UserSelection) TravelerCount() int {
	digits := strings.TrimLeftFunc(s.Traveler, func(r rune) bool { return !unicode.IsDigit(r) })
	end := strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) })
	if end >= 0 {
		digits = digits[:end]
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Membership is one entry of Trip.JoinedUsers.
type Membership struct {
	Email    string    `json:"email" firestore:"email"`
	Name     string    `json:"name" firestore:"name"`
	Picture  string    `json:"picture,omitempty" firestore:"picture"`
	JoinedAt time.Time `json:"joinedAt" firestore:"joinedAt"`
}

// MemberSet maps a normalized e-mail to its membership record.
// Keying by e-mail keeps leave independent of later name or picture changes.
type MemberSet map[string]Membership

// Has reports whether email is a member.
func (s MemberSet) Has(email string) bool {
	_, ok := s[NormalizeEmail(email)]
	return ok
}

// List returns the members ordered by join time, then e-mail.
func (s MemberSet) List() []Membership {
	out := make([]Membership, 0, len(s))
	for _, m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// MarshalJSON renders the set as a list so clients keep seeing joinedUsers as an array.
func (s MemberSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON accepts the list form written by MarshalJSON.
func (s *MemberSet) UnmarshalJSON(data []byte) error {
	var list []Membership
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	set := make(MemberSet, len(list))
	for _, m := range list {
		set[NormalizeEmail(m.Email)] = m
	}
	*s = set
	return nil
}

// Trip is a document of the AITrips collection.
type Trip struct {
	ID            string        `json:"id" firestore:"id"` // millisecond creation timestamp
	UserSelection UserSelection `json:"userSelection" firestore:"userSelection"`
	TripData      Itinerary     `json:"tripData" firestore:"tripData"`
	UserEmail     string        `json:"userEmail" firestore:"userEmail"`
	UserInfo      *Member       `json:"userInfo,omitempty" firestore:"userInfo,omitempty"`
	IsPublic      bool          `json:"isPublic" firestore:"isPublic"`
	JoinedUsers   MemberSet     `json:"joinedUsers" firestore:"joinedUsers"`
	Notes         string        `json:"notes" firestore:"notes"`
	CreatedAt     time.Time     `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// OwnerEmail prefers the stamped owner info and falls back to the creator e-mail.
func (t *Trip) OwnerEmail() string {
	if t.UserInfo != nil && t.UserInfo.Email != "" {
		return NormalizeEmail(t.UserInfo.Email)
	}
	return NormalizeEmail(t.UserEmail)
}

// IsOwner reports whether email owns the trip.
func (t *Trip) IsOwner(email string) bool {
	return email != "" && NormalizeEmail(email) == t.OwnerEmail()
}

// CanAccess reports whether email owns the trip or has joined it.
func (t *Trip) CanAccess(email string) bool {
	return t.IsOwner(email) || t.JoinedUsers.Has(email)
}

// DestinationName is the location label (or display name) cut before the first comma.
// fallback is returned when neither is set.
func (t *Trip) DestinationName(fallback string) string {
	loc := t.UserSelection.Location
	for _, candidate := range []string{loc.Label, loc.DisplayName} {
		if name := strings.TrimSpace(strings.SplitN(candidate, ",", 2)[0]); name != "" {
			return name
		}
	}
	return fallback
}

// CreateTripRequest is the body of POST /trips.
type CreateTripRequest struct {
	Location  Location `json:"location"`
	StartDate string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	NoOfDays  int      `json:"noOfDays" validate:"required,min=1,max=30"`
	Budget    string   `json:"budget" validate:"required"`
	Traveler  string   `json:"traveler" validate:"required"`
}

// UpdateNotesRequest is the body of PUT /trips/:tripId/notes.
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}
