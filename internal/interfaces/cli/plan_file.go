package cli

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// PlanFile is the YAML form of a rate plan:
//
//	name: Campus 100M
//	currency: CNY
//	valid_from: 2026-01-01
//	rates:
//	  - kind: FIXED
//	    price: "30.00"
//	  - kind: TIERED
//	    tiers:
//	      - {from: 0, to: 10GiB, price: "1.00"}
//	      - {from: 10GiB, price: "0.50"}
type PlanFile struct {
	Name      string     `yaml:"name"`
	Currency  string     `yaml:"currency"`
	ValidFrom string     `yaml:"valid_from"`
	ValidTo   string     `yaml:"valid_to"`
	Rates     []RateFile `yaml:"rates"`
}

// RateFile is one rate entry. Price is per GiB for VOLUME, per 10 Mbps band
// for BANDWIDTH and per hour for TIME_BASED.
type RateFile struct {
	Kind      string     `yaml:"kind"`
	Price     string     `yaml:"price"`
	Tiers     []TierFile `yaml:"tiers"`
	ValidFrom string     `yaml:"valid_from"`
	ValidTo   string     `yaml:"valid_to"`
}

// TierFile bounds are byte sizes such as 0, 512MiB or 10GiB. An empty To
// makes the tier open-ended.
type TierFile struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Price string `yaml:"price"`
}

// LoadPlan reads and validates a plan file. The returned plan is active so
// it can be quoted directly.
func LoadPlan(path string) (*rating.RatePlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var pf PlanFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return pf.Build()
}

// Build converts the file into a validated, active rate plan.
func (pf PlanFile) Build() (*rating.RatePlan, error) {
	cur, err := valueobject.ParseCurrency(pf.Currency)
	if err != nil {
		return nil, err
	}
	validFrom, err := parseDate(pf.ValidFrom, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("valid_from: %w", err)
	}
	validTo, err := parseOptionalDate(pf.ValidTo)
	if err != nil {
		return nil, fmt.Errorf("valid_to: %w", err)
	}

	rates := make([]rating.Rate, 0, len(pf.Rates))
	for i, rf := range pf.Rates {
		r, err := rf.build(cur, validFrom)
		if err != nil {
			return nil, fmt.Errorf("rate %d: %w", i, err)
		}
		rates = append(rates, r)
	}

	plan, err := rating.NewRatePlan(pf.Name, cur, validFrom, validTo, rates)
	if err != nil {
		return nil, err
	}
	if err := plan.Activate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (rf RateFile) build(cur valueobject.Currency, planFrom time.Time) (rating.Rate, error) {
	r := rating.Rate{Kind: rating.RateKind(strings.ToUpper(rf.Kind)), UnitPrice: valueobject.Zero(cur)}
	var err error
	if r.ValidFrom, err = parseDate(rf.ValidFrom, planFrom); err != nil {
		return r, fmt.Errorf("valid_from: %w", err)
	}
	if r.ValidTo, err = parseOptionalDate(rf.ValidTo); err != nil {
		return r, fmt.Errorf("valid_to: %w", err)
	}
	if rf.Price != "" {
		if r.UnitPrice, err = valueobject.ParseMoney(rf.Price, cur); err != nil {
			return r, fmt.Errorf("price: %w", err)
		}
	}
	for i, tf := range rf.Tiers {
		tier := rating.TierBound{}
		if tier.FromBytes, err = ParseBytes(tf.From); err != nil {
			return r, fmt.Errorf("tier %d from: %w", i, err)
		}
		if tf.To != "" {
			to, err := ParseBytes(tf.To)
			if err != nil {
				return r, fmt.Errorf("tier %d to: %w", i, err)
			}
			tier.ToBytes = &to
		}
		if tier.Price, err = valueobject.ParseMoney(tf.Price, cur); err != nil {
			return r, fmt.Errorf("tier %d price: %w", i, err)
		}
		r.Tiers = append(r.Tiers, tier)
	}
	return r, nil
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC 3339", s)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s, time.Time{})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var byteUnits = []struct {
	suffix string
	factor int64
}{
	{"TiB", 1 << 40}, {"GiB", 1 << 30}, {"MiB", 1 << 20}, {"KiB", 1 << 10},
	{"TB", 1e12}, {"GB", 1e9}, {"MB", 1e6}, {"KB", 1e3},
	{"B", 1},
}

// ParseBytes accepts a plain byte count or a size with a binary (GiB) or
// decimal (GB) suffix. Fractions are allowed: "1.5GiB".
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, u := range byteUnits {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			return scaled(strings.TrimSpace(num), u.factor)
		}
	}
	return scaled(s, 1)
}

var bandwidthUnits = []struct {
	suffix string
	factor int64
}{
	{"Gbps", 1e9}, {"Mbps", 1e6}, {"Kbps", 1e3}, {"bps", 1},
}

// ParseBandwidth accepts "100Mbps", "1Gbps" or a plain bits-per-second count.
func ParseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, u := range bandwidthUnits {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			return scaled(strings.TrimSpace(num), u.factor)
		}
	}
	return scaled(s, 1)
}

var errNegative = errors.New("value must not be negative")

func scaled(num string, factor int64) (int64, error) {
	if n, err := strconv.ParseInt(num, 10, 64); err == nil {
		if n < 0 {
			return 0, errNegative
		}
		return n * factor, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", num)
	}
	if f < 0 {
		return 0, errNegative
	}
	return int64(math.Round(f * float64(factor))), nil
}
