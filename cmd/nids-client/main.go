package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/reader"
	"Go2NetGuard/internal/sink"

	"github.com/olekukonko/tablewriter"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	mode := flag.String("mode", "files", "Output mode: files (read the published artifacts) or nats (tail live alerts)")
	limit := flag.Int("limit", 20, "Number of recent alerts to show")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch *mode {
	case "files":
		if err := showArtifacts(os.Stdout, cfg.Publisher, *limit); err != nil {
			log.Fatalf("Failed to read artifacts: %v", err)
		}
	case "nats":
		if err := tail(cfg.Sinks.NATS); err != nil {
			log.Fatalf("Failed to tail alerts: %v", err)
		}
	default:
		log.Fatalf("Unknown mode '%s' (want files or nats)", *mode)
	}
}

func showArtifacts(w io.Writer, pc config.PublisherConfig, limit int) error {
	snap, err := reader.ReadStats(pc.StatsPath)
	switch {
	case errors.Is(err, reader.ErrNotPublished):
		fmt.Fprintln(w, "Statistics not published yet (engine not started).")
	case err != nil:
		return err
	default:
		renderStats(w, snap)
	}

	alerts, err := reader.ReadAlerts(pc.AlertsPath, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts recorded.")
		return nil
	}
	renderAlerts(w, alerts)
	return nil
}

func tail(nc config.NATSConfig) error {
	sub, err := sink.NewSubscriber(nc)
	if err != nil {
		return err
	}
	defer sub.Close()

	err = sub.Start(func(rec *model.AlertRecord) {
		renderAlerts(os.Stdout, []model.AlertRecord{*rec})
	})
	if err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}

func renderStats(w io.Writer, s *model.StatisticsSnapshot) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Metric", "Value"})
	t.SetAutoWrapText(false)

	source := s.Source
	if s.Synthetic {
		source += " (synthetic)"
	}
	t.Append([]string{"Run", s.RunID})
	t.Append([]string{"Source", source})
	t.Append([]string{"Started", s.StartedAt.Format(time.RFC3339)})
	t.Append([]string{"Total events", fmt.Sprintf("%d", s.TotalEvents)})
	t.Append([]string{"Normal", fmt.Sprintf("%d (%.2f%%)", s.NormalCount, s.NormalPercentage)})
	t.Append([]string{"Attacks", fmt.Sprintf("%d (%.2f%%)", s.AttackCount, s.AttackPercentage)})

	protos := make([]string, 0, len(s.AttacksByProtocol))
	for p := range s.AttacksByProtocol {
		protos = append(protos, p)
	}
	sort.Strings(protos)
	for _, p := range protos {
		t.Append([]string{"Attacks/" + p, fmt.Sprintf("%d", s.AttacksByProtocol[p])})
	}
	t.Append([]string{"Last updated", s.LastUpdated.Format(time.RFC3339)})
	t.Render()
}

func renderAlerts(w io.Writer, alerts []model.AlertRecord) {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Seq", "Time", "Source", "Destination", "Protocol", "Size", "Score"})
	t.SetAutoWrapText(false)
	t.SetRowLine(false)

	for _, a := range alerts {
		t.Append([]string{
			fmt.Sprintf("%d", a.Seq),
			a.Timestamp.Format(time.RFC3339Nano),
			fmt.Sprintf("%s:%d", a.SrcIP, a.SrcPort),
			fmt.Sprintf("%s:%d", a.DstIP, a.DstPort),
			a.Protocol,
			fmt.Sprintf("%d", a.Size),
			fmt.Sprintf("%.3f", a.Score),
		})
	}
	t.Render()
}
