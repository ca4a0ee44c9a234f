package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/obs"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

// Verdict is the classification of a single source address.
type Verdict struct {
	Suspicious bool           `json:"suspicious"`
	Reason     string         `json:"reason"`
	AbuseScore int            `json:"abuse_score"`
	Details    map[string]any `json:"details,omitempty"`
}

// ReputationChecker classifies an IP address using an external service.
type ReputationChecker interface {
	Check(ctx context.Context, ip string) (Verdict, error)
}

var ErrNotConfigured = errors.New("risk: reputation service not configured")

const (
	DefaultAbuseIPDBURL = "https://api.abuseipdb.com/api/v2"
	DefaultTimeout      = 6 * time.Second
)

// AbuseIPDB queries the AbuseIPDB v2 check endpoint.
type AbuseIPDB struct {
	BaseURL     string
	APIKey      string
	HomeCountry string
	ScoreLimit  int
	MaxAgeDays  int
	Client      *http.Client
}

func NewAbuseIPDB(apiKey, homeCountry string, scoreLimit int, timeout time.Duration) *AbuseIPDB {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AbuseIPDB{
		BaseURL:     DefaultAbuseIPDBURL,
		APIKey:      apiKey,
		HomeCountry: strings.ToUpper(homeCountry),
		ScoreLimit:  scoreLimit,
		MaxAgeDays:  90,
		Client:      &http.Client{Timeout: timeout},
	}
}

type abuseIPDBResponse struct {
	Data struct {
		CountryCode          string   `json:"countryCode"`
		Hostnames            []string `json:"hostnames"`
		UsageType            string   `json:"usageType"`
		ISP                  string   `json:"isp"`
		Domain               string   `json:"domain"`
		IsTor                bool     `json:"isTor"`
		AbuseConfidenceScore int      `json:"abuseConfidenceScore"`
	} `json:"data"`
}

func (a *AbuseIPDB) Check(ctx context.Context, ip string) (Verdict, error) {
	if a.APIKey == "" {
		return Verdict{}, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", fmt.Sprint(a.MaxAgeDays))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(a.BaseURL, "/")+"/check?"+q.Encode(), nil)
	if err != nil {
		return Verdict{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Key", a.APIKey)

	resp, err := a.Client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("abuseipdb: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("abuseipdb: unexpected status %d", resp.StatusCode)
	}

	var body abuseIPDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Verdict{}, fmt.Errorf("abuseipdb: decode: %w", err)
	}
	return a.classify(body), nil
}

var (
	anonymiserMarkers = []string{"vpn", "proxy"}
	domainMarkers     = []string{"vpn", "proxy", "tor"}
	hostingMarkers    = []string{"data center", "datacenter", "web hosting", "hosting", "transit"}
)

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func (a *AbuseIPDB) classify(r abuseIPDBResponse) Verdict {
	d := r.Data
	country := strings.ToUpper(d.CountryCode)
	usage := strings.ToLower(d.UsageType)
	isp := strings.ToLower(d.ISP)
	domain := strings.ToLower(d.Domain)

	var reasons []string
	if d.IsTor || containsAny(isp, anonymiserMarkers...) || containsAny(domain, domainMarkers...) {
		reasons = append(reasons, "vpn/proxy/tor detected")
	}
	if containsAny(usage, hostingMarkers...) {
		reasons = append(reasons, fmt.Sprintf("hosting/datacenter (%s)", usage))
	}
	if len(d.Hostnames) > 0 {
		reasons = append(reasons, "hostnames: "+strings.Join(d.Hostnames, ", "))
	}
	if country != "" && a.HomeCountry != "" && country != a.HomeCountry {
		reasons = append(reasons, "foreign country: "+country)
	}
	if d.AbuseConfidenceScore > a.ScoreLimit {
		reasons = append(reasons, fmt.Sprintf("abuse_score: %d", d.AbuseConfidenceScore))
	}

	v := Verdict{
		Suspicious: len(reasons) > 0,
		AbuseScore: d.AbuseConfidenceScore,
		Details: map[string]any{
			"countryCode":          country,
			"isp":                  d.ISP,
			"usageType":            d.UsageType,
			"abuseConfidenceScore": d.AbuseConfidenceScore,
		},
	}
	if v.Suspicious {
		v.Reason = strings.Join(reasons, "; ")
	} else {
		v.Reason = fmt.Sprintf("isp: %s, country: %s, abuse_score: %d", d.ISP, country, d.AbuseConfidenceScore)
	}
	return v
}

// Assessment is what the login flow acts on: the verdict plus the fraud score
// derived from it.
type Assessment struct {
	Verdict
	FraudScore int
	// Degraded is set when the lookup failed and the verdict comes from the
	// configured failure policy.
	Degraded bool
}

// Assessor applies a timeout and a failure policy around a checker.
//
// With FailOpen unset a failed lookup is treated as suspicious, which blocks
// the login. With FailOpen set the address is let through with a fraud score
// just above ScoreLimit so the login still requires a second factor.
type Assessor struct {
	Checker    ReputationChecker
	ScoreLimit int
	Timeout    time.Duration
	FailOpen   bool
	Metrics    *obs.Metrics
}

func (a *Assessor) Assess(ctx context.Context, ip string) Assessment {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		v   Verdict
		err = ErrNotConfigured
	)
	if a.Checker != nil {
		v, err = a.Checker.Check(ctx, ip)
	}

	if err != nil {
		slogx.FromContext(ctx).Warn("ip reputation lookup failed", "ip", ip, "err", err, "fail_open", a.FailOpen)
		a.Metrics.ReputationLookup("error")
		if a.FailOpen {
			return Assessment{
				Verdict:    Verdict{Reason: "reputation unavailable: " + err.Error()},
				FraudScore: a.ScoreLimit + 1,
				Degraded:   true,
			}
		}
		return Assessment{
			Verdict:    Verdict{Suspicious: true, Reason: "reputation unavailable: " + err.Error()},
			FraudScore: 100,
			Degraded:   true,
		}
	}

	if v.Suspicious {
		a.Metrics.ReputationLookup("suspicious")
		return Assessment{Verdict: v, FraudScore: 100}
	}
	a.Metrics.ReputationLookup("clean")
	return Assessment{Verdict: v}
}
