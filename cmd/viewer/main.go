// Command viewer is a terminal dashboard for a running assistant. It polls
// the stats endpoint and redraws a table of the most recent consultations.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"med-lab/observability"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	// VIEWER_TOKEN is a bearer token issued by /api/v1/auth/login
	Token    string        `envconfig:"VIEWER_TOKEN" required:"true"`
	Interval time.Duration `envconfig:"VIEWER_INTERVAL" default:"2s"`
	Colours  bool          `envconfig:"VIEWER_COLOURS" default:"true"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Printf("Watching %s every %s (Ctrl+C to quit)\n", cfg.ServerURL, cfg.Interval)

	for {
		stats, err := fetchStats(client, cfg)
		if err != nil {
			log.Printf("Stats fetch failed: %v", err)
		} else {
			render(cfg, stats)
		}
		time.Sleep(cfg.Interval)
	}
}

func fetchStats(client *http.Client, cfg Config) (observability.MonitoringStats, error) {
	var stats observability.MonitoringStats

	req, err := http.NewRequest(http.MethodGet, cfg.ServerURL+"/api/v1/stats", nil)
	if err != nil {
		return stats, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := client.Do(req)
	if err != nil {
		return stats, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func render(cfg Config, stats observability.MonitoringStats) {
	// Clear the screen between refreshes
	fmt.Print("\033[H\033[2J")

	header := fmt.Sprintf("  ====== med-lab @ %s ======", time.Now().Format("15:04:05"))
	if cfg.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	fmt.Printf("Queries: %d | Answers: %d | Emergencies: %d | Restarts: %d | Queue: %d/%d | Heap: %d MB\n\n",
		stats.QueriesReceived, stats.AnswersDelivered, stats.EmergencyHits,
		stats.WorkerRestarts, stats.CurrentQueueSize, stats.MaxCapacity, stats.AllocMemMb)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Conversation", "Intents", "Model", "Latency", "Emergency"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, c := range stats.RecentConsultations {
		emergency := "-"
		if c.Emergency {
			emergency = "YES"
			if cfg.Colours {
				emergency = color.New(color.FgRed).Render(emergency)
			}
		}
		conversation := c.Conversation
		if len(conversation) > 8 {
			conversation = conversation[:8]
		}
		table.Append([]string{
			c.Timestamp,
			conversation,
			c.Intents,
			c.Model,
			strconv.FormatInt(c.LatencyMs, 10) + "ms",
			emergency,
		})
	}
	table.Render()
}
