// simulate.go - End to end run: withdraw, spend at several merchants, deposit
package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"digicash/internal/ecash"
)

// SimulationOptions selects what the spender and merchants do
type SimulationOptions struct {
	Owner       string
	Amount      uint64
	DoubleSpend bool // spend the coin at every merchant instead of one
	Replay      bool // first merchant deposits its vector a second time
}

// SimulationReport is the outcome of one run
type SimulationReport struct {
	GUID     string
	Accepted []string
	Vectors  map[string]*ecash.RIS
	Rejected map[string]error
	Verdicts []ecash.Verdict
}

// Simulation wires a bank, a spender, merchants and a clearing ledger
type Simulation struct {
	cfg       *Config
	params    *ecash.Params
	src       ecash.Source
	log       *Logger
	metrics   *MetricsCollector
	bank      *ecash.Bank
	ledger    *ecash.Ledger
	merchants []*ecash.Merchant
}

// NewSimulation generates the bank key and sets up the parties
func NewSimulation(cfg *Config, log *Logger, metrics *MetricsCollector) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	src, err := cfg.Source("bank")
	if err != nil {
		return nil, err
	}
	opts := []ecash.Option{ecash.WithLogger(log.Logger), ecash.WithObserver(metrics)}

	bank, err := ecash.NewBank(src, cfg.KeyBits, opts...)
	if err != nil {
		return nil, err
	}
	detector := &ecash.Detector{MinEvidenceLength: cfg.MinEvidenceLength}

	s := &Simulation{
		cfg:     cfg,
		params:  params,
		src:     src,
		log:     log,
		metrics: metrics,
		bank:    bank,
		ledger:  ecash.NewLedger(bank.PublicKey(), params, detector, opts...),
	}
	for i := 0; i < cfg.NumMerchants; i++ {
		id := fmt.Sprintf("merchant-%d", i+1)
		msrc, err := cfg.Source(id)
		if err != nil {
			return nil, err
		}
		s.merchants = append(s.merchants, ecash.NewMerchant(id, bank.PublicKey(), msrc, params, opts...))
	}
	return s, nil
}

// RegisterHealth adds the simulation's components to hc
func (s *Simulation) RegisterHealth(hc *HealthChecker) {
	hc.RegisterComponent("bank", func() error { return s.bank.SelfTest(s.src) })
	hc.RegisterComponent("hasher", func() error {
		if got := len(s.params.Hash.Sum([]byte("health check"))); got != s.params.Hash.Size() {
			return fmt.Errorf("%s digest is %d bytes, want %d", s.params.Hash.Name(), got, s.params.Hash.Size())
		}
		return nil
	})
}

// Run withdraws one coin and spends it according to opts
func (s *Simulation) Run(ctx context.Context, opts SimulationOptions) (*SimulationReport, error) {
	ssrc, err := s.cfg.Source("spender/" + opts.Owner)
	if err != nil {
		return nil, err
	}
	spender := ecash.NewSpender(opts.Owner, ssrc, s.params, ecash.WithLogger(s.log.Logger), ecash.WithObserver(s.metrics))
	coin, err := spender.Withdraw(s.bank, opts.Amount)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	s.log.Info().Str("guid", coin.GUID).Str("owner", opts.Owner).Uint64("amount", opts.Amount).Msg("coin withdrawn")

	spendAt := s.merchants[:1]
	if opts.DoubleSpend {
		spendAt = s.merchants
	}

	vectors := make([]*ecash.RIS, len(spendAt))
	failures := make([]error, len(spendAt))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, m := range spendAt {
		i, m := i, m
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := spender.Spend(coin.GUID)
			if err != nil {
				return err
			}
			vectors[i], failures[i] = m.Accept(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &SimulationReport{
		GUID:     coin.GUID,
		Vectors:  make(map[string]*ecash.RIS),
		Rejected: make(map[string]error),
	}
	for i, m := range spendAt {
		if failures[i] != nil {
			report.Rejected[m.ID()] = failures[i]
			continue
		}
		report.Accepted = append(report.Accepted, m.ID())
		report.Vectors[m.ID()] = vectors[i]
		if err := s.deposit(report, m.ID(), coin, vectors[i]); err != nil {
			return nil, err
		}
	}
	if opts.Replay && vectors[0] != nil {
		if err := s.deposit(report, spendAt[0].ID(), coin, vectors[0]); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (s *Simulation) deposit(report *SimulationReport, merchant string, coin *ecash.Coin, ris *ecash.RIS) error {
	verdicts, err := s.ledger.Deposit(merchant, coin, ris)
	if err != nil {
		return fmt.Errorf("deposit from %s: %w", merchant, err)
	}
	for _, v := range verdicts {
		s.log.Audit("verdict", map[string]interface{}{
			"guid":     v.GUID,
			"kind":     v.Kind.String(),
			"owner":    v.Owner,
			"index":    v.Index,
			"merchant": merchant,
		})
	}
	report.Verdicts = append(report.Verdicts, verdicts...)
	return nil
}
