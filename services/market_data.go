package services

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
)

// MarketDataProvider supplies subscription and GMP readings for a listing.
// Readings are for display only and are never written back to the catalog.
type MarketDataProvider interface {
	Subscription(ctx context.Context, ipo *models.IPO) (*models.Subscription, error)
	GMP(ctx context.Context, ipo *models.IPO) (*models.GMP, error)
}

// MarketSimulator fabricates plausible readings. It stands in for a live feed.
type MarketSimulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewMarketSimulator(seed int64) *MarketSimulator {
	return &MarketSimulator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

func (m *MarketSimulator) float() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *MarketSimulator) Subscription(ctx context.Context, ipo *models.IPO) (*models.Subscription, error) {
	return &models.Subscription{
		Retail: round2(m.float()*5 + 0.5),
		HNI:    round2(m.float()*10 + 1),
		QIB:    round2(m.float()*3 + 0.8),
		Total:  round2(m.float()*6 + 1),
	}, nil
}

func (m *MarketSimulator) GMP(ctx context.Context, ipo *models.IPO) (*models.GMP, error) {
	return &models.GMP{
		Price:       math.Floor(m.float()*100) + 10,
		Percentage:  math.Floor(m.float()*50) + 5,
		LastUpdated: m.now().UTC(),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
