// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command routesim executes a route against simulated venues and prints
// the receipt.
//
//	routesim --config scenario.yaml [--verbosity debug] [--gaslimit 2000000] [--metrics]
//	routesim --venues
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/luxfi/geth/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/aggregator/aggregator"
	"github.com/luxfi/aggregator/registry"
)

func main() {
	flags := pflag.NewFlagSet("routesim", pflag.ExitOnError)
	configPath := flags.String("config", "scenario.yaml", "scenario file (yaml, json or toml)")
	flags.String("verbosity", "info", "log level: trace, debug, info, warn, error")
	flags.Uint64("gaslimit", 0, "work ceiling for the batch, 0 for unmetered")
	flags.Bool("metrics", false, "print aggregator metrics after the receipt")
	listVenues := flags.Bool("venues", false, "list the well-known venue addresses and exit")
	_ = flags.Parse(os.Args[1:])

	if *listVenues {
		if err := writeVenues(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	sc, err := LoadScenario(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(os.Stderr, sc.Verbosity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, sc, os.Stdout); err != nil {
		log.Error("Route failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, sc *Scenario, out io.Writer) error {
	sim, err := NewSimulation(sc)
	if err != nil {
		return err
	}
	receipt, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	if err := writeReceipt(out, receipt); err != nil {
		return err
	}
	if sc.Metrics {
		return writeMetrics(out, sim.Metrics)
	}
	return nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, f := range families {
		if _, err := expfmt.MetricFamilyToText(w, f); err != nil {
			return err
		}
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

func setupLogging(w io.Writer, verbosity string) {
	h := log.NewTerminalHandlerWithLevel(w, parseLevel(verbosity), false)
	log.SetDefault(log.NewLogger(h))
}

type paymentView struct {
	Token  string `yaml:"token"`
	Amount string `yaml:"amount"`
}

type receiptView struct {
	Fingerprint string        `yaml:"fingerprint"`
	Output      paymentView   `yaml:"output"`
	ReferralFee string        `yaml:"referralFee"`
	ProtocolFee string        `yaml:"protocolFee"`
	Dust        []paymentView `yaml:"dust,omitempty"`
	GasUsed     uint64        `yaml:"gasUsed"`
}

func viewPayment(p aggregator.Payment) paymentView {
	return paymentView{Token: p.Currency.String(), Amount: p.Amount.Dec()}
}

func writeReceipt(w io.Writer, r *aggregator.Receipt) error {
	view := receiptView{
		Fingerprint: r.Fingerprint.Hex(),
		Output:      viewPayment(r.Output),
		ReferralFee: r.ReferralFee.Dec(),
		ProtocolFee: r.ProtocolFee.Dec(),
		GasUsed:     r.GasUsed,
	}
	for _, d := range r.Dust {
		view.Dust = append(view.Dust, viewPayment(d))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return err
	}
	return enc.Close()
}

type venueView struct {
	Kind        string `yaml:"kind"`
	Name        string `yaml:"name"`
	Address     string `yaml:"address"`
	Description string `yaml:"description"`
}

// writeVenues lists the well-known venues grouped by kind
func writeVenues(w io.Writer) error {
	var views []venueView
	for kind := registry.KindCore; kind <= registry.KindLending; kind++ {
		for _, v := range registry.GetVenuesByKind(kind) {
			views = append(views, venueView{
				Kind:        registry.KindName(kind),
				Name:        v.Name,
				Address:     v.Address,
				Description: v.Description,
			})
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(views); err != nil {
		return err
	}
	return enc.Close()
}
