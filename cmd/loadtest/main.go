// Command loadtest drives POST /predict with a fixed set of Spanish reviews
// (or texts read from a dataset CSV) and prints throughput, latency
// percentiles, label mix and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8000] [-concurrency 10] [-duration 30s] [-data data.csv]
//
// The service throttles /predict per client; start it with
// SA_SERVER_RATE_LIMIT=0 to measure raw throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Texts       []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
	labels      map[string]int64
	confidence  float64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
		labels:      make(map[string]int64),
	}
}

type predictResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (s *Stats) Record(duration time.Duration, statusCode int, body []byte, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCodes[statusCode]++
	s.latencies = append(s.latencies, duration)
	if statusCode != http.StatusOK {
		s.errorCount.Add(1)
		return
	}
	s.successCount.Add(1)
	var pr predictResponse
	if json.Unmarshal(body, &pr) == nil {
		s.labels[pr.Label]++
		s.confidence += pr.Confidence
	}
}

var defaultTexts = []string{
	"Excelente servicio, muy recomendado!",
	"Pésima experiencia, nunca más vuelvo",
	"El pedido llegó el martes",
	"La atención fue increíble y rápida",
	"El producto llegó roto y nadie responde",
	"Es un producto normal, nada especial",
	"Me encantó la calidad, volveré a comprar",
	"Horrible, el peor soporte que he tenido",
	"La tienda abre a las nueve",
	"Todo perfecto, gracias",
	"",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the sentiment service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	dataPath := flag.String("data", "", "optional dataset CSV to draw texts from")
	flag.Parse()

	texts := defaultTexts
	if *dataPath != "" {
		records, err := dataset.LoadCSV(*dataPath, dataset.DefaultCSVOptions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading texts: %v\n", err)
			os.Exit(1)
		}
		texts = dataset.Texts(records)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Texts:       texts,
	}

	fmt.Println("=== Sentiment Service Load Test ===")
	fmt.Printf("Target:      %s/predict\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Texts:       %d unique\n", len(cfg.Texts))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
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

	bodies := make([][]byte, len(cfg.Texts))
	for i, t := range cfg.Texts {
		bodies[i], _ = json.Marshal(map[string]string{"text": t})
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				body := bodies[i%len(bodies)]
				start := time.Now()
				code, resp, err := post(ctx, client, cfg.BaseURL+"/predict", body)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(time.Since(start), code, resp, err)
			}
			return nil
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	fmt.Print("Running")
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
	g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errs := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", errs)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	if len(stats.latencies) > 0 {
		latencies := append([]time.Duration(nil), stats.latencies...)
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			d := float64(l - avg)
			sq += d * d
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	if success > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Labels ===")
		labels := make([]string, 0, len(stats.labels))
		for l := range stats.labels {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(w, "  %-10s %d\n", l, stats.labels[l])
		}
		fmt.Fprintf(w, "Avg confidence: %.4f\n", stats.confidence/float64(success))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code])
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
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
