package analytics

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Accounts names the general-ledger accounts the sales aggregator tracks.
type Accounts struct {
	Freight       string   `yaml:"freight"`
	Miscellaneous string   `yaml:"miscellaneous"`
	Revenue       []string `yaml:"revenue"`
}

// All returns every tracked account, revenue accounts first.
func (a Accounts) All() []string {
	out := make([]string, 0, len(a.Revenue)+2)
	out = append(out, a.Revenue...)
	if a.Miscellaneous != "" {
		out = append(out, a.Miscellaneous)
	}
	if a.Freight != "" {
		out = append(out, a.Freight)
	}
	return out
}

// CollectionRates is the share of each aging bucket expected to be collected
// in one forecast week.
type CollectionRates struct {
	Current    float64 `yaml:"current"`
	Days1To30  float64 `yaml:"days_1_30"`
	Days31To60 float64 `yaml:"days_31_60"`
	Days61To90 float64 `yaml:"days_61_90"`
	Days90Plus float64 `yaml:"days_90_plus"`
}

// InvoiceCaps bounds the invoice detail rows retained per summary window.
type InvoiceCaps struct {
	Yesterday int `yaml:"yesterday"`
	MTD       int `yaml:"mtd"`
	YTD       int `yaml:"ytd"`
}

// Policy carries the fixed lookup tables used while building a snapshot. A
// Policy is read-only once handed to the builders.
type Policy struct {
	ServiceProductCodes  []string           `yaml:"service_product_codes"`
	ServiceCategory      string             `yaml:"service_category"`
	Accounts             Accounts           `yaml:"accounts"`
	InvoiceRefPattern    string             `yaml:"invoice_ref_pattern"`
	OpenBalanceThreshold float64            `yaml:"open_balance_threshold"`
	CollectionRates      CollectionRates    `yaml:"collection_rates"`
	WeekdayWeights       map[string]float64 `yaml:"weekday_weights"`
	DefaultWeekdayWeight float64            `yaml:"default_weekday_weight"`
	Holidays             []string           `yaml:"holidays"`
	HolidayFactor        float64            `yaml:"holiday_factor"`
	AgingRetention       float64            `yaml:"aging_retention"`
	AgingInflow          float64            `yaml:"aging_inflow"`
	ForecastWeeks        int                `yaml:"forecast_weeks"`
	Confidence           []int              `yaml:"confidence"`
	TrendDays            int                `yaml:"trend_days"`
	TopN                 int                `yaml:"top_n"`
	InvoiceCaps          InvoiceCaps        `yaml:"invoice_caps"`
	DataSource           string             `yaml:"data_source"`
}

// DefaultPolicy returns the tables the dashboard has always shipped with.
func DefaultPolicy() Policy {
	return Policy{
		ServiceProductCodes: []string{"LFTR", "LGAS", "LIHL"},
		ServiceCategory:     CategoryService,
		Accounts: Accounts{
			Freight:       "495400",
			Miscellaneous: "495000",
			Revenue:       []string{"401000", "402000"},
		},
		InvoiceRefPattern:    `ARI\s*(\d+)`,
		OpenBalanceThreshold: 1,
		CollectionRates: CollectionRates{
			Current:    0.70,
			Days1To30:  0.25,
			Days31To60: 0.15,
			Days61To90: 0.08,
			Days90Plus: 0.03,
		},
		WeekdayWeights: map[string]float64{
			time.Monday.String():    0.15,
			time.Tuesday.String():   0.28,
			time.Wednesday.String(): 0.25,
			time.Thursday.String():  0.20,
			time.Friday.String():    0.12,
		},
		DefaultWeekdayWeight: 0.20,
		Holidays: []string{
			"2026-01-01", "2026-01-20", "2026-02-17", "2026-05-25",
			"2026-07-03", "2026-09-07", "2026-11-26", "2026-11-27", "2026-12-25",
		},
		HolidayFactor:  0.2,
		AgingRetention: 0.7,
		AgingInflow:    0.3,
		ForecastWeeks:  6,
		Confidence:     []int{85, 70, 55, 55, 40, 40},
		TrendDays:      60,
		TopN:           20,
		InvoiceCaps:    InvoiceCaps{Yesterday: 100, MTD: 500, YTD: 1000},
		DataSource:     "SyteLine IDO API (Automated)",
	}
}

// LoadPolicy overlays the YAML file at path on top of DefaultPolicy. An empty
// path yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("analytics: read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("analytics: parse policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// ErrInvalidPolicy wraps every policy validation failure.
var ErrInvalidPolicy = errors.New("analytics: invalid policy")

// Validate checks the invariants the builders rely on.
func (p Policy) Validate() error {
	if len(p.Accounts.Revenue) == 0 {
		return fmt.Errorf("%w: at least one revenue account required", ErrInvalidPolicy)
	}
	for _, acct := range p.Accounts.Revenue {
		if strings.TrimSpace(acct) == "" {
			return fmt.Errorf("%w: blank revenue account", ErrInvalidPolicy)
		}
	}
	if _, err := p.invoiceMatcher(); err != nil {
		return fmt.Errorf("%w: invoice_ref_pattern: %v", ErrInvalidPolicy, err)
	}
	if p.ForecastWeeks < 0 || p.TrendDays < 0 || p.TopN < 0 {
		return fmt.Errorf("%w: negative window", ErrInvalidPolicy)
	}
	for _, h := range p.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("%w: holiday %q", ErrInvalidPolicy, h)
		}
	}
	return nil
}

func (p Policy) invoiceMatcher() (*regexp.Regexp, error) {
	re, err := regexp.Compile(p.InvoiceRefPattern)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, errors.New("pattern must capture the invoice number")
	}
	return re, nil
}

func (p Policy) isServiceCode(code string) bool {
	for _, c := range p.ServiceProductCodes {
		if c == code {
			return true
		}
	}
	return false
}

func (p Policy) isRevenueAccount(acct string) bool {
	for _, a := range p.Accounts.Revenue {
		if a == acct {
			return true
		}
	}
	return false
}

func (p Policy) weekdayWeight(wd time.Weekday) float64 {
	if w, ok := p.WeekdayWeights[wd.String()]; ok {
		return w
	}
	return p.DefaultWeekdayWeight
}

func (p Policy) confidence(week int) int {
	if len(p.Confidence) == 0 {
		return 0
	}
	if week >= len(p.Confidence) {
		return p.Confidence[len(p.Confidence)-1]
	}
	return p.Confidence[week]
}
