// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/aggregator/aggregator"
	"github.com/luxfi/aggregator/venues"
)

const envPrefix = "ROUTESIM"

var errInvalidScenario = errors.New("invalid scenario")

// Scenario is a venue set, a deposit basket and the route to run
type Scenario struct {
	Owner     string `mapstructure:"owner"`
	Verbosity string `mapstructure:"verbosity"`
	GasLimit  uint64 `mapstructure:"gaslimit"`
	Wrapped   string `mapstructure:"wrapped"`
	StaticFee uint32 `mapstructure:"staticfee"`
	Metrics   bool   `mapstructure:"metrics"`

	Referral    *ReferralConfig `mapstructure:"referral"`
	Pairs       []PairConfig    `mapstructure:"pairs"`
	StablePools []StableConfig  `mapstructure:"stablepools"`
	Staking     []StakingConfig `mapstructure:"staking"`
	Markets     []MarketConfig  `mapstructure:"markets"`
	Deposits    []AmountConfig  `mapstructure:"deposits"`
	Route       RouteConfig     `mapstructure:"route"`
}

// ReferralConfig registers a referral used by the route
type ReferralConfig struct {
	Owner string `mapstructure:"owner"`
	Fee   uint32 `mapstructure:"fee"`
}

// PairConfig seeds a constant-product pair
type PairConfig struct {
	Kind          string `mapstructure:"kind"`
	First         string `mapstructure:"first"`
	Second        string `mapstructure:"second"`
	ReserveFirst  string `mapstructure:"reservefirst"`
	ReserveSecond string `mapstructure:"reservesecond"`
}

// StableConfig seeds a stable pool
type StableConfig struct {
	Name     string   `mapstructure:"name"`
	Address  string   `mapstructure:"address"`
	Assets   []string `mapstructure:"assets"`
	Balances []string `mapstructure:"balances"`
	Fee      uint64   `mapstructure:"fee"`
}

// StakingConfig installs a liquid staking pool at a well-known venue
type StakingConfig struct {
	Venue      string `mapstructure:"venue"`
	Underlying string `mapstructure:"underlying"`
	Liquid     string `mapstructure:"liquid"`
}

// MarketConfig installs a money market
type MarketConfig struct {
	Name       string `mapstructure:"name"`
	Address    string `mapstructure:"address"`
	Underlying string `mapstructure:"underlying"`
	Receipt    string `mapstructure:"receipt"`
}

// AmountConfig is an asset and a decimal amount
type AmountConfig struct {
	Token  string `mapstructure:"token"`
	Amount string `mapstructure:"amount"`
}

// RouteConfig is either structured steps or a hex compact payload
type RouteConfig struct {
	TokenOut string       `mapstructure:"tokenout"`
	MinOut   string       `mapstructure:"minout"`
	Steps    []StepConfig `mapstructure:"steps"`
	Payload  string       `mapstructure:"payload"`
}

// StepConfig is one instruction
type StepConfig struct {
	Action      string        `mapstructure:"action"`
	Inputs      []InputConfig `mapstructure:"inputs"`
	Venue       string        `mapstructure:"venue"`
	TokenOut    string        `mapstructure:"tokenout"`
	OutputCount uint8         `mapstructure:"outputcount"`
	PairID      uint16        `mapstructure:"pairid"`
}

// InputConfig is one ledger withdrawal. Mode is fixed, ppm, all or prev.
type InputConfig struct {
	Token  string `mapstructure:"token"`
	Mode   string `mapstructure:"mode"`
	Amount string `mapstructure:"amount"`
}

// LoadScenario reads the scenario file, then env, then flags
func LoadScenario(path string, flags *pflag.FlagSet) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("verbosity", "info")
	v.SetDefault("gaslimit", 0)
	v.SetDefault("metrics", false)
	v.SetDefault("wrapped", "0x00000000000000000000000000000000000000ee")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", path, err)
	}
	if sc.Owner == "" {
		return nil, fmt.Errorf("%w: owner required", errInvalidScenario)
	}
	if len(sc.Route.Steps) == 0 && sc.Route.Payload == "" {
		return nil, fmt.Errorf("%w: route needs steps or a payload", errInvalidScenario)
	}
	return &sc, nil
}

// =========================================================================
// Value parsing
// =========================================================================

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: address %q", errInvalidScenario, s)
	}
	return common.HexToAddress(s), nil
}

// parseCurrency accepts "native", "lp:<pair index>" or a hex address
func parseCurrency(s string) (aggregator.Currency, error) {
	switch {
	case strings.EqualFold(s, "native"):
		return aggregator.NativeCurrency, nil
	case strings.HasPrefix(s, "lp:"):
		addr, err := pairAddress(strings.TrimPrefix(s, "lp:"))
		if err != nil {
			return aggregator.Currency{}, err
		}
		return aggregator.NewCurrency(addr), nil
	default:
		addr, err := parseAddress(s)
		if err != nil {
			return aggregator.Currency{}, err
		}
		return aggregator.NewCurrency(addr), nil
	}
}

// parseVenue accepts "pair:<pair index>" or a hex address
func parseVenue(s string) (common.Address, error) {
	if strings.HasPrefix(s, "pair:") {
		return pairAddress(strings.TrimPrefix(s, "pair:"))
	}
	return parseAddress(s)
}

// pairAddress returns the address the exchange mints for the n-th pair
func pairAddress(index string) (common.Address, error) {
	n, err := strconv.ParseUint(index, 10, 16)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: pair index %q", errInvalidScenario, index)
	}
	var addr common.Address
	start := new(uint256.Int).SetBytes(venues.PairRange.Start[:])
	start.AddUint64(start, n).WriteToSlice(addr[:])
	return addr, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", errInvalidScenario, s, err)
	}
	return v, nil
}

func parseAction(s string) (aggregator.Action, error) {
	for a := aggregator.Action(0); a.Valid(); a++ {
		if strings.EqualFold(a.String(), s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", aggregator.ErrInvalidAction, s)
}

func parsePairKind(s string) (venues.PairKind, error) {
	for _, k := range []venues.PairKind{venues.KindXExchange, venues.KindOneDex, venues.KindJex} {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: pair kind %q", errInvalidScenario, s)
}

func parseMode(in InputConfig) (aggregator.AmountMode, error) {
	switch strings.ToLower(in.Mode) {
	case "all":
		return aggregator.All(), nil
	case "prev":
		return aggregator.Prev(), nil
	case "ppm":
		ppm, err := strconv.ParseUint(in.Amount, 10, 64)
		if err != nil {
			return aggregator.AmountMode{}, fmt.Errorf("%w: ppm %q", errInvalidScenario, in.Amount)
		}
		return aggregator.Ppm(ppm), nil
	case "fixed", "":
		amount, err := parseAmount(in.Amount)
		if err != nil {
			return aggregator.AmountMode{}, err
		}
		return aggregator.Fixed(amount), nil
	default:
		return aggregator.AmountMode{}, fmt.Errorf("%w: mode %q", errInvalidScenario, in.Mode)
	}
}
