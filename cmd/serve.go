// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/metrics"
	"github.com/Thermoquad/dmmstat/pkg/stream"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveListen   string
	serveUsername string
	serveRecord   bool
	serveNote     string
	serveMetrics  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream live readings over WebSocket and expose metrics",
	Long: `Capture continuously and publish every reading to WebSocket clients.

Endpoints:
  /ws       - binary CBOR readings, one message per frame
  /metrics  - Prometheus metrics for the capture loop
  /healthz  - liveness check

Clients that cannot keep up lose readings instead of slowing the capture.
Use 'dmmstat watch --url ws://host:8080/ws' to follow the stream.

When --username is set, clients must authenticate with HTTP Basic auth. The
password is read from the DMMSTAT_PASSWORD environment variable, or prompted
interactively if not set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveUsername, "username", "", "Require HTTP Basic auth with this username")
	serveCmd.Flags().BoolVar(&serveRecord, "record", false, "Record the capture as a session in the store")
	serveCmd.Flags().StringVar(&serveNote, "note", "", "Note attached to the recorded session")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().StringVar(&storePath, "db", "", "Store database path (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sc := cfg.Serve
	flags := cmd.Flags()
	if flags.Changed("listen") {
		sc.Listen = serveListen
	}
	if flags.Changed("username") {
		sc.Username = serveUsername
	}
	if flags.Changed("metrics") {
		sc.Metrics = serveMetrics
	}
	if sc.Username != "" && sc.Password == "" {
		pw, err := GetPassword()
		if err != nil {
			return err
		}
		sc.Password = pw
	}

	src, connInfo, err := OpenSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	collector := metrics.NewCollector()
	hub := stream.NewHub(stream.HubConfig{
		Logger:   log,
		Username: sc.Username,
		Password: sc.Password,
		OnDrop:   collector.StreamDropped,
	})
	defer hub.Close()

	if err := collector.RegisterGaugeFunc("stream_clients", "Connected WebSocket clients.", func() float64 {
		return float64(hub.Clients())
	}); err != nil {
		return err
	}

	consumers := capture.Consumers{hub}
	if serveRecord {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		session, err := st.CreateSession(ctx, cfg.Device.Source, serveNote, time.Now())
		if err != nil {
			return err
		}
		consumers = append(consumers, st.NewRecorder(ctx, session))
		defer func() {
			if err := st.EndSession(context.Background(), session.ID, time.Now()); err != nil {
				log.WithError(err).Error("Failed to close session")
			}
		}()
		log.WithField("session", session.ID).Info("Recording session")
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	if sc.Metrics {
		mux.Handle("/metrics", collector.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:              sc.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", sc.Listen).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	log.WithField("source", connInfo).Info("Capture started")
	c := capture.New(src, consumers, captureConfig(collector))

	captureErr := make(chan error, 1)
	go func() {
		captureErr <- c.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-captureErr:
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
		cancel()
		<-captureErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown failed")
	}

	stats := c.Statistics()
	log.WithFields(logrus.Fields{
		"frames":  stats.Frames,
		"sent":    hub.Sent(),
		"dropped": hub.Dropped(),
	}).Info("Capture stopped")
	return runErr
}
