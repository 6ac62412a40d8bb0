package domain

import (
	"encoding/json"
	"time"
)

// Product carries the rating-relevant fields of a catalog product. The
// aggregate is held once and written out under both legacy spellings.
type Product struct {
	ID        string
	Name      string
	Rating    RatingSummary
	UpdatedAt time.Time
}

// productJSON is the wire shape of a product. rating/averageRating and
// reviews/ratingsCount always carry the same values.
type productJSON struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Rating        float64   `json:"rating"`
	Reviews       int       `json:"reviews"`
	AverageRating float64   `json:"averageRating"`
	RatingsCount  int       `json:"ratingsCount"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler.
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(productJSON{
		ID:            p.ID,
		Name:          p.Name,
		Rating:        p.Rating.Mean,
		Reviews:       p.Rating.Count,
		AverageRating: p.Rating.Mean,
		RatingsCount:  p.Rating.Count,
		UpdatedAt:     p.UpdatedAt,
	})
}
