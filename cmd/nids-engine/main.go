package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2NetGuard/internal/alerter"
	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/features"
	"Go2NetGuard/internal/health"
	"Go2NetGuard/internal/inference"
	"Go2NetGuard/internal/metrics"
	"Go2NetGuard/internal/model"
	"Go2NetGuard/internal/notification"
	"Go2NetGuard/internal/pipeline"
	"Go2NetGuard/internal/publisher"
	"Go2NetGuard/internal/sink"
	"Go2NetGuard/internal/source"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	mode := flag.String("mode", "", "Ingestion mode: live, replay or synthetic")
	iface := flag.String("iface", "", "Capture interface (live mode)")
	pcapPath := flag.String("pcap", "", "Trace file or directory (replay mode)")
	pacing := flag.Float64("pacing", 1, "Replay pacing multiplier; 0 replays as fast as possible")
	attackProb := flag.Float64("attack-prob", 0.2, "Attack probability (synthetic mode)")
	interval := flag.String("interval", "", "Emission interval (synthetic mode), e.g. 500ms")
	flag.Parse()

	log.Println("Starting nids-engine...")

	// 1. Load configuration and apply command-line overrides
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Ingestion.Mode = *mode
		case "iface":
			cfg.Ingestion.Live.Interface = *iface
		case "pcap":
			cfg.Ingestion.Replay.Path = *pcapPath
		case "pacing":
			cfg.Ingestion.Replay.Pacing = pacing
		case "attack-prob":
			cfg.Ingestion.Synthetic.AttackProbability = *attackProb
		case "interval":
			cfg.Ingestion.Synthetic.Interval = *interval
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Configuration loaded successfully (mode: %s).", cfg.Ingestion.Mode)

	if err := run(cfg); err != nil {
		log.Fatalf("nids-engine stopped: %v", err)
	}
	log.Println("Shutdown complete.")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Load the trained artifacts
	enc, err := features.LoadLabelEncoder(cfg.Model.EncoderPath)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrStartup, err)
	}
	forest, err := inference.Load(cfg.Model.ClassifierPath, cfg.Model.Threshold)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrStartup, err)
	}
	extractor := features.NewExtractor(enc)
	if err := forest.CheckShape(extractor.Width(), extractor.Names()); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStartup, err)
	}
	log.Printf("Model loaded: %d features, digest %s, protocols %v", forest.Width(), forest.Digest(), enc.Classes())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// 3. Everything that can refuse the run is checked before the publisher
	// resets the previous run's artifacts.
	src, err := source.New(&cfg.Ingestion)
	if err != nil {
		return err
	}

	pub, err := publisher.New(publisher.Options{
		AlertsPath:  cfg.Publisher.AlertsPath,
		StatsPath:   cfg.Publisher.StatsPath,
		Fsync:       cfg.Publisher.Fsync,
		FlushEvery:  cfg.Publisher.FlushEvery,
		Source:      src.Name(),
		Synthetic:   cfg.Ingestion.Mode == config.ModeSynthetic,
		ModelDigest: forest.Digest(),
		Sinks:       sink.FromConfig(cfg.Sinks),
		Metrics:     m,
	})
	if err != nil {
		src.Close()
		return fmt.Errorf("%w: %v", model.ErrStartup, err)
	}
	log.Printf("Publishing run %s to %s and %s", pub.RunID(), cfg.Publisher.AlertsPath, cfg.Publisher.StatsPath)

	p, err := pipeline.New(src, extractor, forest, pub, pipeline.Options{
		LogEvery: cfg.Publisher.LogEvery,
		Metrics:  m,
	})
	if err != nil {
		src.Close()
		pub.Close()
		return err
	}

	// 4. Ambient services
	if cfg.Metrics.Enabled {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Printf("Metrics server starting on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
		defer shutdown(srv)
	}

	var hs *health.Server
	if cfg.Health.Enabled {
		hs, err = health.Listen(cfg.Health.Addr)
		if err != nil {
			log.Printf("Health service disabled: %v", err)
		} else {
			go func() {
				if err := hs.Serve(); err != nil {
					log.Printf("Health service failed: %v", err)
				}
			}()
			defer hs.Stop()
		}
	}

	if cfg.Alerter.Enabled {
		a, err := alerter.NewAlerter(&cfg.Alerter, pub, notification.FromConfig(cfg.SMTP))
		if err != nil {
			log.Printf("Alerter disabled: %v", err)
		} else {
			a.Start()
			defer a.Stop()
		}
	}

	// 5. Run until cancelled or the source is exhausted
	if hs != nil {
		hs.SetServing(true)
	}
	err = p.Run(ctx)
	if hs != nil {
		hs.SetServing(false)
	}
	if n := enc.UnknownCount(); n > 0 {
		log.Printf("%d events carried a protocol label unseen at training time", n)
	}
	if errors.Is(err, model.ErrHandleLost) {
		return fmt.Errorf("capture lost after %d events: %w", p.Processed(), err)
	}
	return err
}

func metricsMux(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	return mux
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Metrics server forced to shutdown: %v", err)
	}
}
