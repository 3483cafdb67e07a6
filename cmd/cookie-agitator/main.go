// Package main - agitator
// Load generator for stress testing the cookie server.
// Opens many WebSocket clients that click and shop at a fixed interval.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	ClickRatio     float64
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 100*time.Millisecond, "Action interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	clickRatio := flag.Float64("click-ratio", 0.9, "Share of actions that are clicks")
	output := flag.String("out", "stress_test_results.json", "Where to write the JSON report")
	flag.Parse()

	log := logger.NewLogger()
	config := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		ClickRatio:     *clickRatio,
	}

	fmt.Println("=========================================")
	fmt.Println("Cookie Agitator - Stress Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Clients:  %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Warn("Interrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config, log)
	report := stats.Report(config)
	printReport(report)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Errorf("Failed to encode report: %v", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		log.Errorf("Failed to write report: %v", err)
		os.Exit(1)
	}
	fmt.Printf("\nResults saved to %s\n", *output)
}

func runStressTest(ctx context.Context, config Config, log *logger.Logger) *Stats {
	stats := NewStats()
	var wg sync.WaitGroup

	log.Info("Starting clients...")
	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats, log)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	log.Infof("All %d clients started", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Infof("Progress: sent=%d recv=%d errors=%d",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats, log *logger.Logger) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Warnf("Client %d: connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			stats.Observe(frame)
		}
	}()

	actions := newActionSource(int64(clientID), config.ClickRatio)
	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			start := time.Now()
			if err := conn.WriteJSON(actions.Next()); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			stats.RecordSend(time.Since(start))
		}
	}
}

func printReport(r Report) {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Messages Sent:     %s\n", humanize.Comma(r.MessagesSent))
	fmt.Printf("Messages Received: %s\n", humanize.Comma(r.MessagesReceived))
	fmt.Printf("Errors:            %d\n", r.Errors)
	fmt.Printf("Error Rate:        %.2f%%\n", r.ErrorRate*100)
	fmt.Printf("Throughput:        %.2f msg/sec\n", r.Throughput)
	if len(r.ByType) > 0 {
		fmt.Println("\nServer messages:")
		for typ, n := range r.ByType {
			fmt.Printf("  %-20s %s\n", typ, humanize.Comma(n))
		}
	}
	if r.LatencyMax > 0 {
		fmt.Printf("\nLatency:\n  Min: %v\n  Avg: %v\n  Max: %v\n", r.LatencyMin, r.LatencyAvg, r.LatencyMax)
	}
	fmt.Println("\n-----------------------------------------")
	fmt.Println(r.Verdict)
	fmt.Println("=========================================")
}
