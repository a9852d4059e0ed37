// Command loadtest drives a running discovery service with a mix of prefix
// searches and trending requests and reports latency per endpoint along with
// the trending cache outcomes observed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL       string
	Concurrency   int
	Duration      time.Duration
	TrendingRatio float64
	Prefixes      []string
	Windows       []int
	Limits        []int
}

// endpointStats accumulates results for one endpoint.
type endpointStats struct {
	total     atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newEndpointStats() *endpointStats {
	return &endpointStats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *endpointStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil || status < 200 || status >= 300 {
		s.errors.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

type Stats struct {
	search   *endpointStats
	trending *endpointStats
	outcomes sync.Map // cache outcome -> *atomic.Int64
}

func NewStats() *Stats {
	return &Stats{search: newEndpointStats(), trending: newEndpointStats()}
}

func (s *Stats) recordOutcome(outcome string) {
	v, _ := s.outcomes.LoadOrStore(outcome, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the discovery service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	ratio := flag.Float64("trending-ratio", 0.5, "fraction of requests sent to the trending endpoint")
	flag.Parse()

	cfg := Config{
		BaseURL:       *baseURL,
		Concurrency:   *concurrency,
		Duration:      *duration,
		TrendingRatio: math.Min(1, math.Max(0, *ratio)),
		Prefixes:      []string{"", "g", "go", "gop", "ru", "rust", "py", "post", "re", "ka", "zzz", "é", "straße"},
		Windows:       []int{1, 7, 30},
		Limits:        []int{5, 10, 25},
	}

	fmt.Println("=== Topic Discovery Load Test ===")
	fmt.Printf("Target:         %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:    %d\n", cfg.Concurrency)
	fmt.Printf("Duration:       %s\n", cfg.Duration)
	fmt.Printf("Trending ratio: %.2f\n", cfg.TrendingRatio)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	// Every 1/ratio-th request of a worker is a trending request.
	trendingEvery := 0
	if cfg.TrendingRatio > 0 {
		trendingEvery = int(math.Round(1 / cfg.TrendingRatio))
	}

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for n := workerID; ; n++ {
				if ctx.Err() != nil {
					return
				}
				if trendingEvery > 0 && n%trendingEvery == 0 {
					window := cfg.Windows[n%len(cfg.Windows)]
					limit := cfg.Limits[(n/len(cfg.Windows))%len(cfg.Limits)]
					target := fmt.Sprintf("%s/api/v1/topics/trending?window=%d&limit=%d", cfg.BaseURL, window, limit)
					trending(ctx, client, target, stats)
					continue
				}
				prefix := cfg.Prefixes[n%len(cfg.Prefixes)]
				target := fmt.Sprintf("%s/api/v1/topics/search?prefix=%s", cfg.BaseURL, url.QueryEscape(prefix))
				search(ctx, client, target, stats)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func search(ctx context.Context, client *http.Client, target string, stats *Stats) {
	start := time.Now()
	resp, err := client.Do(mustNewRequest(ctx, target))
	if err != nil {
		if ctx.Err() == nil {
			stats.search.record(time.Since(start), 0, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.search.record(time.Since(start), resp.StatusCode, nil)
}

func trending(ctx context.Context, client *http.Client, target string, stats *Stats) {
	start := time.Now()
	resp, err := client.Do(mustNewRequest(ctx, target))
	if err != nil {
		if ctx.Err() == nil {
			stats.trending.record(time.Since(start), 0, err)
		}
		return
	}
	var body struct {
		Cache string `json:"cache"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.trending.record(time.Since(start), resp.StatusCode, nil)
	if decodeErr == nil && body.Cache != "" {
		stats.recordOutcome(body.Cache)
	}
}

func mustNewRequest(ctx context.Context, rawURL string) *http.Request {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	return req
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.search.total.Load() + stats.trending.total.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	if total > 0 {
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	printEndpoint("search", stats.search)
	printEndpoint("trending", stats.trending)

	fmt.Println()
	fmt.Println("=== Trending Cache Outcomes ===")
	var outcomes []string
	stats.outcomes.Range(func(k, _ any) bool {
		outcomes = append(outcomes, k.(string))
		return true
	})
	sort.Strings(outcomes)
	for _, o := range outcomes {
		v, _ := stats.outcomes.Load(o)
		fmt.Printf("  %-12s %d\n", o+":", v.(*atomic.Int64).Load())
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func printEndpoint(name string, s *endpointStats) {
	total := s.total.Load()
	errors := s.errors.Load()
	fmt.Println()
	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("Requests:   %d\n", total)
	if total == 0 {
		return
	}
	fmt.Printf("Errors:     %d (%.2f%%)\n", errors, float64(errors)/float64(total)*100)

	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	counts := make([]int64, len(codes))
	for i, code := range codes {
		counts[i] = s.codes[code]
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Printf("Min:        %s\n", latencies[0])
		fmt.Printf("Avg:        %s\n", sum/time.Duration(len(latencies)))
		fmt.Printf("P50:        %s\n", percentile(latencies, 50))
		fmt.Printf("P95:        %s\n", percentile(latencies, 95))
		fmt.Printf("P99:        %s\n", percentile(latencies, 99))
		fmt.Printf("Max:        %s\n", latencies[len(latencies)-1])
	}
	for i, code := range codes {
		fmt.Printf("  %d: %d\n", code, counts[i])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
