// Command loadtest drives concurrent lyric queries against a running search
// service and reports throughput, latency percentiles, cache hit rate and
// zero-result rate.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-queries queries.txt]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var defaultQueries = []string{
	"I will always love you",
	"breaking hearts in the night",
	"dancing in the dark",
	"we are the champions my friend",
	"hello from the other side",
	"baby baby baby oh",
	"the answer is blowing in the wind",
	"cause baby you're a firework",
	"let it be let it be",
	"we will rock you",
	"under the bridge downtown",
	"don't stop believing hold on to that feeling",
	"the the the and and",
	"zzyzx qwerty",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

type Stats struct {
	total       atomic.Int64
	success     atomic.Int64
	failed      atomic.Int64
	cacheHits   atomic.Int64
	zeroResults atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

type searchResponse struct {
	CacheHit bool              `json:"cache_hit"`
	Results  []json.RawMessage `json:"results"`
}

func (s *Stats) record(d time.Duration, status int, resp *searchResponse, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status == http.StatusOK {
		s.success.Add(1)
		if resp.CacheHit {
			s.cacheHits.Add(1)
		}
		if len(resp.Results) == 0 {
			s.zeroResults.Add(1)
		}
	} else {
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results requested per query")
	queryFile := flag.String("queries", "", "file with one lyric query per line")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		var err error
		queries, err = readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		Queries:     queries,
	}

	fmt.Println("=== Lyrics Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := run(cfg)
	if !report(stats, cfg.Duration) {
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return out, nil
}

func run(cfg Config) *Stats {
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
	for w := range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", cfg.BaseURL, url.QueryEscape(query), cfg.Limit)
				start := time.Now()
				status, resp, err := search(ctx, client, target)
				if ctx.Err() != nil {
					return
				}
				stats.record(time.Since(start), status, resp, err)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
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

func search(ctx context.Context, client *http.Client, target string) (int, *searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var body searchResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, &body, nil
}

func report(stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	success := stats.success.Load()
	failed := stats.failed.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", failed)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
		fmt.Printf("Zero Results:    %.2f%%\n", float64(stats.zeroResults.Load())/float64(success)*100)
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make(map[int]int64, len(stats.statusCodes))
	for code, n := range stats.statusCodes {
		codes[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	slices.Sort(keys)
	for _, code := range keys {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the search service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
