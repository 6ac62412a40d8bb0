package domain

import "encoding/json"

// RatingSummary is the aggregate of a product's approved reviews.
type RatingSummary struct {
	Mean  float64
	Count int
}

// SummaryFromTotals builds a summary from the sum and number of approved
// ratings. The mean is rounded to one decimal and is 0 when count is 0.
func SummaryFromTotals(sum, count int64) RatingSummary {
	if count <= 0 {
		return RatingSummary{}
	}
	// Round in integer tenths so x.x5 means never drift below the half.
	tenths := (20*sum + count) / (2 * count)
	return RatingSummary{
		Mean:  float64(tenths) / 10,
		Count: int(count),
	}
}

// Summary is a rating summary as served to readers. Cached marks values
// answered from the summary cache.
type Summary struct {
	RatingSummary
	Cached bool
}

type summaryJSON struct {
	Avg           float64 `json:"avg"`
	Total         int     `json:"total"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
	Cached        bool    `json:"cached,omitempty"`
}

// MarshalJSON writes the summary under both the avg/total and the
// averageRating/reviewCount spellings.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		Avg:           s.Mean,
		Total:         s.Count,
		AverageRating: s.Mean,
		ReviewCount:   s.Count,
		Cached:        s.Cached,
	})
}

// UnmarshalJSON accepts either spelling, preferring avg/total.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var raw struct {
		Avg           *float64 `json:"avg"`
		Total         *int     `json:"total"`
		AverageRating float64  `json:"averageRating"`
		ReviewCount   int      `json:"reviewCount"`
		Cached        bool     `json:"cached"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Mean = raw.AverageRating
	if raw.Avg != nil {
		s.Mean = *raw.Avg
	}
	s.Count = raw.ReviewCount
	if raw.Total != nil {
		s.Count = *raw.Total
	}
	s.Cached = raw.Cached
	return nil
}
