package rating_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

var (
	planStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	billingAt = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
)

func cny(amount string) valueobject.Money {
	return valueobject.MustParseMoney(amount, valueobject.CNY)
}

func gib(n float64) int64 {
	return int64(n * float64(rating.BytesPerGiB))
}

func ptr(v int64) *int64 { return &v }

func fixedRate(t *testing.T, price string) rating.Rate {
	t.Helper()
	r, err := rating.NewRate(rating.RateKindFixed, cny(price), nil, planStart, nil)
	require.NoError(t, err)
	return *r
}

func freeFirstGiBTiers() []rating.TierBound {
	return []rating.TierBound{
		{FromBytes: 0, ToBytes: ptr(rating.BytesPerGiB), Price: cny("0")},
		{FromBytes: rating.BytesPerGiB, ToBytes: ptr(10 * rating.BytesPerGiB), Price: cny("0.05")},
		{FromBytes: 10 * rating.BytesPerGiB, Price: cny("0.10")},
	}
}

func activePlan(t *testing.T, rates ...rating.Rate) *rating.RatePlan {
	t.Helper()
	plan, err := rating.NewRatePlan("Home Fiber 100", valueobject.CNY, planStart, nil, rates)
	require.NoError(t, err)
	require.NoError(t, plan.Activate())
	return plan
}

func usage(t *testing.T, up, down, peak, seconds int64) rating.UsageSample {
	t.Helper()
	u, err := rating.NewUsageSample(up, down, peak, seconds)
	require.NoError(t, err)
	return u
}

func TestEngine_FixedPlusTieredRoundsPerTier(t *testing.T) {
	tiered, err := rating.NewRate(rating.RateKindTiered, valueobject.Zero(valueobject.CNY), freeFirstGiBTiers(), planStart, nil)
	require.NoError(t, err)
	plan := activePlan(t, fixedRate(t, "50.00"), *tiered)

	// 5.5 GiB total traffic: 1 GiB free, 4.5 GiB at 0.05 = 0.225 -> 0.23
	u := usage(t, gib(2), gib(3.5), 0, 0)

	cost, err := rating.NewEngine().CalculateCost(plan, u, billingAt)
	require.NoError(t, err)
	assert.Equal(t, "50.23 CNY", cost.String())
}

func TestEngine_Contributions(t *testing.T) {
	tests := []struct {
		name  string
		kind  rating.RateKind
		price string
		usage [4]int64 // up, down, peak bps, seconds
		want  string
	}{
		{"fixed ignores usage", rating.RateKindFixed, "30.00", [4]int64{0, 0, 0, 0}, "30.00 CNY"},
		{"volume per GiB", rating.RateKindVolume, "2.00", [4]int64{gib(1), gib(0.5), 0, 0}, "3.00 CNY"},
		{"volume rounds half up", rating.RateKindVolume, "0.01", [4]int64{gib(0.5), 0, 0, 0}, "0.01 CNY"},
		{"bandwidth ceils to next 10 Mbps band", rating.RateKindBandwidth, "5.00", [4]int64{0, 0, 25_000_000, 0}, "15.00 CNY"},
		{"bandwidth exact band", rating.RateKindBandwidth, "5.00", [4]int64{0, 0, 20_000_000, 0}, "10.00 CNY"},
		{"bandwidth one bps over", rating.RateKindBandwidth, "5.00", [4]int64{0, 0, 20_000_001, 0}, "15.00 CNY"},
		{"bandwidth idle", rating.RateKindBandwidth, "5.00", [4]int64{0, 0, 0, 0}, "0.00 CNY"},
		{"time based per hour", rating.RateKindTimeBased, "1.20", [4]int64{0, 0, 0, 5400}, "1.80 CNY"},
		{"time based rounds once", rating.RateKindTimeBased, "1.00", [4]int64{0, 0, 0, 1}, "0.00 CNY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := rating.NewRate(tt.kind, cny(tt.price), nil, planStart, nil)
			require.NoError(t, err)
			plan := activePlan(t, *r)

			cost, err := rating.NewEngine().CalculateCost(plan, usage(t, tt.usage[0], tt.usage[1], tt.usage[2], tt.usage[3]), billingAt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cost.String())
		})
	}
}

func TestEngine_TieredAcrossAllBands(t *testing.T) {
	tiered, err := rating.NewRate(rating.RateKindTiered, valueobject.Zero(valueobject.CNY), freeFirstGiBTiers(), planStart, nil)
	require.NoError(t, err)
	plan := activePlan(t, *tiered)

	// 12 GiB: 1 free, 9 * 0.05 = 0.45, 2 * 0.10 = 0.20
	q, err := rating.NewEngine().Breakdown(plan, usage(t, gib(12), 0, 0, 0), billingAt)
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.Equal(t, "0.65 CNY", q.Total.String())
	assert.Equal(t, gib(12), q.Lines[0].Quantity)
}

func TestEngine_Errors(t *testing.T) {
	engine := rating.NewEngine()
	u := usage(t, 1, 1, 0, 0)

	t.Run("inactive plan", func(t *testing.T) {
		plan, err := rating.NewRatePlan("Idle", valueobject.CNY, planStart, nil, []rating.Rate{fixedRate(t, "1.00")})
		require.NoError(t, err)
		_, err = engine.CalculateCost(plan, u, billingAt)
		assert.True(t, errors.Is(err, rating.ErrPlanNotActive))
	})

	t.Run("before valid_from", func(t *testing.T) {
		plan := activePlan(t, fixedRate(t, "1.00"))
		_, err := engine.CalculateCost(plan, u, planStart.Add(-time.Second))
		assert.True(t, errors.Is(err, rating.ErrPlanNotActive))
	})

	t.Run("valid_to is exclusive", func(t *testing.T) {
		end := planStart.AddDate(0, 1, 0)
		plan, err := rating.NewRatePlan("Promo", valueobject.CNY, planStart, &end, []rating.Rate{fixedRate(t, "1.00")})
		require.NoError(t, err)
		require.NoError(t, plan.Activate())

		_, err = engine.CalculateCost(plan, u, end)
		assert.True(t, errors.Is(err, rating.ErrPlanNotActive))

		_, err = engine.CalculateCost(plan, u, end.Add(-time.Nanosecond))
		assert.NoError(t, err)
	})

	t.Run("no rates", func(t *testing.T) {
		plan := &rating.RatePlan{Name: "Empty", Currency: valueobject.CNY, ValidFrom: planStart, Active: true}
		_, err := engine.CalculateCost(plan, u, billingAt)
		assert.True(t, errors.Is(err, rating.ErrNoRates))
	})

	t.Run("nil plan", func(t *testing.T) {
		_, err := engine.CalculateCost(nil, u, billingAt)
		assert.True(t, errors.Is(err, rating.ErrPlanNotActive))
	})
}

func TestEngine_SkipsRatesOutsideTheirWindow(t *testing.T) {
	later := billingAt.Add(24 * time.Hour)
	future, err := rating.NewRate(rating.RateKindFixed, cny("99.00"), nil, later, nil)
	require.NoError(t, err)
	plan := activePlan(t, fixedRate(t, "10.00"), *future)

	cost, err := rating.NewEngine().CalculateCost(plan, usage(t, 0, 0, 0, 0), billingAt)
	require.NoError(t, err)
	assert.Equal(t, "10.00 CNY", cost.String())
}

func TestEngine_DeterministicAndOrderIndependent(t *testing.T) {
	tiered, err := rating.NewRate(rating.RateKindTiered, valueobject.Zero(valueobject.CNY), freeFirstGiBTiers(), planStart, nil)
	require.NoError(t, err)
	volume, err := rating.NewRate(rating.RateKindVolume, cny("0.33"), nil, planStart, nil)
	require.NoError(t, err)
	timed, err := rating.NewRate(rating.RateKindTimeBased, cny("0.07"), nil, planStart, nil)
	require.NoError(t, err)
	bw, err := rating.NewRate(rating.RateKindBandwidth, cny("1.11"), nil, planStart, nil)
	require.NoError(t, err)

	rates := []rating.Rate{fixedRate(t, "12.34"), *tiered, *volume, *timed, *bw}
	u := usage(t, gib(3.3), gib(4.7), 37_500_000, 4321)
	engine := rating.NewEngine()

	first, err := engine.CalculateCost(activePlan(t, rates...), u, billingAt)
	require.NoError(t, err)
	again, err := engine.CalculateCost(activePlan(t, rates...), u, billingAt)
	require.NoError(t, err)
	assert.True(t, first.Equals(again))

	reversed := make([]rating.Rate, len(rates))
	for i := range rates {
		reversed[len(rates)-1-i] = rates[i]
	}
	other, err := engine.CalculateCost(activePlan(t, reversed...), u, billingAt)
	require.NoError(t, err)
	assert.True(t, first.Equals(other))
}

func TestNewUsageSample_RejectsNegative(t *testing.T) {
	_, err := rating.NewUsageSample(-1, 0, 0, 0)
	assert.True(t, errors.Is(err, rating.ErrInvalidUsage))
}

func TestNewUsageSample_RejectsTrafficOverflow(t *testing.T) {
	_, err := rating.NewUsageSample(math.MaxInt64, 1, 0, 0)
	assert.True(t, errors.Is(err, rating.ErrInvalidUsage))

	u, err := rating.NewUsageSample(math.MaxInt64-1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), u.TotalBytes())
}

func TestEngine_CostOverflow(t *testing.T) {
	engine := rating.NewEngine()

	t.Run("bandwidth bands times price", func(t *testing.T) {
		bw, err := rating.NewRate(rating.RateKindBandwidth, cny("1000000000.00"), nil, planStart, nil)
		require.NoError(t, err)
		_, err = engine.CalculateCost(activePlan(t, *bw), usage(t, 0, 0, math.MaxInt64, 0), billingAt)
		assert.True(t, errors.Is(err, rating.ErrCostOverflow))
	})

	t.Run("volume at the traffic limit", func(t *testing.T) {
		vol, err := rating.NewRate(rating.RateKindVolume, cny("1000000000.00"), nil, planStart, nil)
		require.NoError(t, err)
		_, err = engine.CalculateCost(activePlan(t, *vol), usage(t, math.MaxInt64/2, math.MaxInt64/2, 0, 0), billingAt)
		assert.True(t, errors.Is(err, rating.ErrCostOverflow))
	})

	t.Run("peak bandwidth near the limit still counts bands", func(t *testing.T) {
		bw, err := rating.NewRate(rating.RateKindBandwidth, cny("0.01"), nil, planStart, nil)
		require.NoError(t, err)
		q, err := engine.Breakdown(activePlan(t, *bw), usage(t, 0, 0, math.MaxInt64, 0), billingAt)
		require.NoError(t, err)
		require.Len(t, q.Lines, 1)
		assert.Equal(t, int64(math.MaxInt64/rating.BandwidthBandBps+1), q.Lines[0].Quantity)
		assert.False(t, q.Total.IsNegative())
	})
}

// Plans rebuilt from storage bypass NewRate, so the engine checks them again.
func TestEngine_RejectsMalformedStoredRates(t *testing.T) {
	engine := rating.NewEngine()
	u := usage(t, gib(2), gib(3), 0, 0)
	storedPlan := func(r rating.Rate) *rating.RatePlan {
		return &rating.RatePlan{Name: "Stored", Currency: valueobject.CNY, ValidFrom: planStart, Active: true, Rates: []rating.Rate{r}}
	}

	tests := []struct {
		name  string
		rate  rating.Rate
		check error
	}{
		{
			name:  "tiered without tiers",
			rate:  rating.Rate{Kind: rating.RateKindTiered, UnitPrice: valueobject.Zero(valueobject.CNY), ValidFrom: planStart},
			check: rating.ErrInvalidTiers,
		},
		{
			name: "overlapping tiers",
			rate: rating.Rate{Kind: rating.RateKindTiered, UnitPrice: valueobject.Zero(valueobject.CNY), ValidFrom: planStart, Tiers: []rating.TierBound{
				{FromBytes: 0, ToBytes: ptr(10 * rating.BytesPerGiB), Price: cny("1.00")},
				{FromBytes: 5 * rating.BytesPerGiB, Price: cny("0.50")},
			}},
			check: rating.ErrInvalidTiers,
		},
		{
			name:  "negative unit price",
			rate:  rating.Rate{Kind: rating.RateKindVolume, UnitPrice: cny("-1.00"), ValidFrom: planStart},
			check: rating.ErrInvalidRate,
		},
		{
			name:  "unknown kind",
			rate:  rating.Rate{Kind: "FLAT", UnitPrice: cny("1.00"), ValidFrom: planStart},
			check: rating.ErrInvalidRate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := engine.Breakdown(storedPlan(tt.rate), u, billingAt)
				assert.True(t, errors.Is(err, tt.check), "got %v", err)
			})
		})
	}
}
