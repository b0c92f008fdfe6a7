package dealscache

import "context"

// Deal is one offer for a product on one platform.
type Deal struct {
	ID            string  `json:"id" msgpack:"id"`
	Title         string  `json:"title" msgpack:"title"`
	Platform      string  `json:"platform" msgpack:"platform"`
	URL           string  `json:"url,omitempty" msgpack:"url,omitempty"`
	ImageURL      string  `json:"image_url,omitempty" msgpack:"image_url,omitempty"`
	Price         float64 `json:"price" msgpack:"price"`
	OriginalPrice float64 `json:"original_price,omitempty" msgpack:"original_price,omitempty"`
	Currency      string  `json:"currency,omitempty" msgpack:"currency,omitempty"`
	Rating        float64 `json:"rating,omitempty" msgpack:"rating,omitempty"`
}

// Discount is the fractional saving against OriginalPrice, 0 when unknown.
func (d Deal) Discount() float64 {
	if d.OriginalPrice <= 0 || d.Price >= d.OriginalPrice {
		return 0
	}
	return (d.OriginalPrice - d.Price) / d.OriginalPrice
}

// PricePoint is one observed price. Date is YYYY-MM-DD.
type PricePoint struct {
	Date     string  `json:"date" msgpack:"date"`
	Price    float64 `json:"price" msgpack:"price"`
	Platform string  `json:"platform,omitempty" msgpack:"platform,omitempty"`
}

// PriceHistory is the collected price series for a product.
type PriceHistory struct {
	ProductName string       `json:"product_name" msgpack:"product_name"`
	PeriodDays  int          `json:"period_days" msgpack:"period_days"`
	Platform    string       `json:"platform,omitempty" msgpack:"platform,omitempty"`
	Points      []PricePoint `json:"points" msgpack:"points"`
	Lowest      float64      `json:"lowest" msgpack:"lowest"`
	Highest     float64      `json:"highest" msgpack:"highest"`
	Average     float64      `json:"average" msgpack:"average"`
}

// Summarize fills Lowest, Highest and Average from Points.
func (h *PriceHistory) Summarize() {
	if len(h.Points) == 0 {
		h.Lowest, h.Highest, h.Average = 0, 0, 0
		return
	}
	lo, hi, sum := h.Points[0].Price, h.Points[0].Price, 0.0
	for _, p := range h.Points {
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
		sum += p.Price
	}
	h.Lowest, h.Highest, h.Average = lo, hi, sum/float64(len(h.Points))
}

// HealthStatus is the backend's self-reported state.
type HealthStatus struct {
	Status  string `json:"status" msgpack:"status"`
	Version string `json:"version,omitempty" msgpack:"version,omitempty"`
}

// HistoryQuery selects a price history. An empty Platform means all platforms.
type HistoryQuery struct {
	Product    string
	PeriodDays int
	Platform   string
}

// Upstream is the remote deals backend. Implementations should honor ctx and
// return ErrEmptyResult when the backend has nothing for the request.
type Upstream interface {
	Search(ctx context.Context, query string) ([]Deal, error)
	Popular(ctx context.Context, limit int) ([]Deal, error)
	Health(ctx context.Context) (HealthStatus, error)
	PriceHistory(ctx context.Context, q HistoryQuery) (PriceHistory, error)
}
