package strategies

import (
	"testing"
	"time"

	"github.com/rustyeddy/signalsim/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bought = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func pos(avg float64) portfolio.Position {
	return portfolio.Position{Ticker: "AAPL", Shares: 10, AvgPrice: avg, TotalCost: 10 * avg}
}

func TestShouldBuyOnSignal(t *testing.T) {
	t.Parallel()

	for _, s := range All() {
		assert.True(t, s.ShouldBuy("AAPL", 1, 100, portfolio.Summary{}), s.Name())
		assert.False(t, s.ShouldBuy("AAPL", 0, 100, portfolio.Summary{}), s.Name())
	}
}

func TestPositionSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       Strategy
		cash    float64
		tickers int
		price   float64
		want    int
	}{
		{"basic single ticker", Basic(), 10_000, 1, 100, 100},
		{"basic split", Basic(), 10_000, 3, 100, 33},
		{"aggressive", Aggressive(), 10_000, 2, 100, 40},
		{"conservative", Conservative(), 10_000, 2, 100, 25},
		{"floor", Basic(), 1_000, 1, 333, 3},
		{"price above budget", Basic(), 50, 1, 100, 0},
		{"zero tickers", Basic(), 10_000, 0, 100, 0},
		{"zero price", Basic(), 10_000, 1, 0, 0},
		{"negative cash", Basic(), -10, 1, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.s.PositionSize("AAPL", tt.cash, tt.tickers, tt.price))
		})
	}
}

func TestShouldSell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       Strategy
		price   float64
		days    int
		horizon int
		want    bool
	}{
		{"basic before horizon", Basic(), 150, 0, 1, false},
		{"basic at horizon", Basic(), 100, 1, 1, true},
		{"basic ignores losses", Basic(), 50, 2, 5, false},
		{"aggressive stop loss", Aggressive(), 94, 0, 5, true},
		{"aggressive exactly -5%", Aggressive(), 95, 0, 5, false},
		{"aggressive at horizon", Aggressive(), 100, 5, 5, true},
		{"conservative take profit", Conservative(), 111, 0, 5, true},
		{"conservative exactly +10%", Conservative(), 110, 0, 5, false},
		{"conservative stop loss", Conservative(), 96.9, 0, 5, true},
		{"conservative exactly -3%", Conservative(), 97, 0, 5, false},
		{"conservative horizon not reached", Conservative(), 100, 1, 1, false},
		{"conservative 1.5x horizon", Conservative(), 100, 2, 1, true},
		{"conservative 1.5x rounds up", Conservative(), 100, 7, 5, false},
		{"conservative 1.5x reached", Conservative(), 100, 8, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			now := bought.AddDate(0, 0, tt.days)
			assert.Equal(t, tt.want, tt.s.ShouldSell("AAPL", pos(100), tt.price, bought, now, tt.horizon))
		})
	}
}

func TestStrategiesAreDeterministic(t *testing.T) {
	t.Parallel()

	now := bought.AddDate(0, 0, 3)
	for _, s := range All() {
		first := s.ShouldSell("AAPL", pos(100), 97.5, bought, now, 4)
		size := s.PositionSize("AAPL", 12_345, 3, 17.5)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, s.ShouldSell("AAPL", pos(100), 97.5, bought, now, 4))
			assert.Equal(t, size, s.PositionSize("AAPL", 12_345, 3, 17.5))
		}
	}
}

func TestDaysHeld(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, DaysHeld(bought, bought))
	assert.Equal(t, 1, DaysHeld(bought, bought.AddDate(0, 0, 1)))
	assert.Equal(t, 3, DaysHeld(bought, bought.AddDate(0, 0, 3).Add(5*time.Hour)))
}

func TestByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"basic", "Basic Strategy", " AGGRESSIVE ", "conservative"} {
		s, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, s.Name())
		assert.NotEmpty(t, s.Description())
	}

	_, err := ByName("yolo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
	assert.Equal(t, []string{"aggressive", "basic", "conservative"}, Names())
}
