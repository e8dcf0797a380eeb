// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/aggregator/aggregator"
	"github.com/luxfi/aggregator/venues"
)

// Simulation is a scenario loaded onto a fresh network
type Simulation struct {
	Scenario   *Scenario
	Network    *venues.Network
	Aggregator *aggregator.Aggregator
	Owner      common.Address
	ReferralID uint64
	Metrics    *prometheus.Registry
}

// NewSimulation builds the venues and the aggregator a scenario describes
func NewSimulation(sc *Scenario) (*Simulation, error) {
	owner, err := parseAddress(sc.Owner)
	if err != nil {
		return nil, err
	}
	wrapped, err := parseCurrency(sc.Wrapped)
	if err != nil {
		return nil, err
	}
	net, err := venues.NewNetwork(wrapped)
	if err != nil {
		return nil, err
	}
	if err := seed(net, sc); err != nil {
		return nil, err
	}

	agg, err := aggregator.New(aggregator.DefaultConfig(owner), memdb.New(), net.Registry, net)
	if err != nil {
		return nil, err
	}
	s := &Simulation{Scenario: sc, Network: net, Aggregator: agg, Owner: owner, Metrics: prometheus.NewRegistry()}
	agg.SetMetrics(aggregator.NewMetrics(s.Metrics))

	if sc.StaticFee != 0 {
		if err := agg.SetStaticFee(owner, sc.StaticFee); err != nil {
			return nil, err
		}
	}
	if sc.Referral != nil {
		refOwner, err := parseAddress(sc.Referral.Owner)
		if err != nil {
			return nil, err
		}
		if s.ReferralID, err = agg.AddReferral(owner, refOwner, sc.Referral.Fee); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// seed installs every venue of the scenario
func seed(net *venues.Network, sc *Scenario) error {
	for i, pc := range sc.Pairs {
		kind, err := parsePairKind(pc.Kind)
		if err != nil {
			return err
		}
		first, err := parseCurrency(pc.First)
		if err != nil {
			return err
		}
		second, err := parseCurrency(pc.Second)
		if err != nil {
			return err
		}
		resFirst, err := parseAmount(pc.ReserveFirst)
		if err != nil {
			return err
		}
		resSecond, err := parseAmount(pc.ReserveSecond)
		if err != nil {
			return err
		}
		p, err := net.CreatePair(kind, first, second, resFirst, resSecond)
		if err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		log.Info("Pair seeded", "index", i, "kind", kind, "pair", p.Address, "id", p.PairID)
	}

	for _, st := range sc.StablePools {
		addr, err := parseAddress(st.Address)
		if err != nil {
			return err
		}
		assets := make([]aggregator.Currency, len(st.Assets))
		for i, a := range st.Assets {
			if assets[i], err = parseCurrency(a); err != nil {
				return err
			}
		}
		balances := make([]*uint256.Int, len(st.Balances))
		for i, b := range st.Balances {
			if balances[i], err = parseAmount(b); err != nil {
				return err
			}
		}
		if _, err := net.AddStablePool(st.Name, addr, assets, balances, st.Fee); err != nil {
			return fmt.Errorf("stable pool %s: %w", st.Name, err)
		}
	}

	for _, sk := range sc.Staking {
		underlying, err := parseCurrency(sk.Underlying)
		if err != nil {
			return err
		}
		liquid, err := parseCurrency(sk.Liquid)
		if err != nil {
			return err
		}
		if _, err := net.AddLiquidStaking(sk.Venue, underlying, liquid); err != nil {
			return fmt.Errorf("staking %s: %w", sk.Venue, err)
		}
	}

	for _, mc := range sc.Markets {
		addr, err := parseAddress(mc.Address)
		if err != nil {
			return err
		}
		underlying, err := parseCurrency(mc.Underlying)
		if err != nil {
			return err
		}
		receipt, err := parseCurrency(mc.Receipt)
		if err != nil {
			return err
		}
		if _, err := net.AddMoneyMarket(mc.Name, addr, underlying, receipt); err != nil {
			return fmt.Errorf("market %s: %w", mc.Name, err)
		}
	}
	return nil
}

// Deposits returns the scenario's deposit basket
func (s *Simulation) Deposits() ([]aggregator.Payment, error) {
	out := make([]aggregator.Payment, 0, len(s.Scenario.Deposits))
	for _, d := range s.Scenario.Deposits {
		c, err := parseCurrency(d.Token)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(d.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, aggregator.NewPayment(c, amount))
	}
	return out, nil
}

// Batch builds the structured batch of the route
func (s *Simulation) Batch() (*aggregator.Batch, error) {
	route := s.Scenario.Route
	tokenOut, err := parseCurrency(route.TokenOut)
	if err != nil {
		return nil, err
	}
	minOut, err := parseAmount(route.MinOut)
	if err != nil {
		return nil, err
	}

	batch := &aggregator.Batch{TokenOut: tokenOut, MinOut: minOut, ReferralID: s.ReferralID}
	for i, step := range route.Steps {
		instr, err := buildInstruction(step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		batch.Instructions = append(batch.Instructions, *instr)
	}
	return batch, nil
}

func buildInstruction(step StepConfig) (*aggregator.Instruction, error) {
	action, err := parseAction(step.Action)
	if err != nil {
		return nil, err
	}
	instr := &aggregator.Instruction{
		Action:      action,
		OutputCount: step.OutputCount,
		PairID:      step.PairID,
	}
	for _, in := range step.Inputs {
		c, err := parseCurrency(in.Token)
		if err != nil {
			return nil, err
		}
		mode, err := parseMode(in)
		if err != nil {
			return nil, err
		}
		instr.Inputs = append(instr.Inputs, aggregator.InputArg{Currency: c, Mode: mode})
	}
	if step.Venue != "" {
		venue, err := parseVenue(step.Venue)
		if err != nil {
			return nil, err
		}
		instr.Venue = &venue
	}
	if step.TokenOut != "" {
		if instr.TokenOut, err = parseCurrency(step.TokenOut); err != nil {
			return nil, err
		}
	}
	return instr, nil
}

// Run executes the route. A compact payload goes through the selector
// entry point the way an on-chain caller would submit it.
func (s *Simulation) Run(ctx context.Context) (*aggregator.Receipt, error) {
	deposits, err := s.Deposits()
	if err != nil {
		return nil, err
	}

	if s.Scenario.Route.Payload != "" {
		payload, err := hexutil.Decode(s.Scenario.Route.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: payload: %v", errInvalidScenario, err)
		}
		gas := s.Scenario.GasLimit
		if gas == 0 {
			gas = aggregator.GasMaxBatch
		}
		input := binary.BigEndian.AppendUint32(nil, aggregator.SelectorAggregate)
		ret, remaining, err := s.Aggregator.Run(ctx, s.Owner, append(input, payload...), deposits, gas, false)
		if err != nil {
			return nil, err
		}
		log.Debug("Payload executed", "gas", gas, "remaining", remaining)
		return aggregator.DecodeReceipt(ret)
	}

	batch, err := s.Batch()
	if err != nil {
		return nil, err
	}
	return s.Aggregator.Execute(ctx, batch, deposits, s.Scenario.GasLimit)
}
