package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/bytestore-go/bytestore"
	"github.com/bitfsorg/bytestore-go/capacity"
	"github.com/bitfsorg/bytestore-go/config"
	"github.com/bitfsorg/bytestore-go/ledger"
	"github.com/bitfsorg/bytestore-go/metrics"
	"github.com/bitfsorg/bytestore-go/record"
)

// app holds the state shared by subcommands.
type app struct {
	configPath string
	dataDir    string
	keyHex     string

	cfg     config.Config
	log     *logrus.Logger
	logFile *os.File
	ledger  ledger.Ledger
	store   *bytestore.Store
	metrics *prometheus.Registry
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bytestore",
		Short:         "`bytestore` stores versioned, checksummed blobs in paid-for capacity",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "keygen" {
				return nil
			}
			return a.open(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default ~/.bytestore)")
	root.PersistentFlags().StringVar(&a.keyHex, "key", "", "owner private key, hex")

	root.AddCommand(
		a.keygenCmd(),
		a.fundCmd(),
		a.balanceCmd(),
		a.createCmd(),
		a.appendCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.deleteCounterCmd(),
		a.showCmd(),
		a.versionsCmd(),
		a.listCmd(),
		a.serveMetricsCmd(),
	)
	return root
}

// execute runs cmd and closes the ledger whether or not the command failed.
func (a *app) execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// open loads the configuration and opens the ledger and store.
func (a *app) open(logOut io.Writer) error {
	dataDir := a.dataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	path := a.configPath
	if path == "" {
		path = config.ConfigPath(dataDir)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return err
	}
	if a.dataDir != "" || errors.Is(err, config.ErrConfigNotFound) {
		cfg.DataDir = dataDir
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logrus.New()
	a.log.SetOutput(logOut)
	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return err
	}
	a.log.SetLevel(level)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.log.SetOutput(f)
		a.logFile = f
	}

	layout, err := bytestore.ParseEnvelopeLayout(cfg.EnvelopeLayout)
	if err != nil {
		return err
	}

	switch cfg.Backend {
	case config.BackendMemory:
		a.ledger = ledger.NewMemLedger()
	default:
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		a.ledger, err = ledger.OpenBoltLedger(config.LedgerPath(cfg.DataDir))
		if err != nil {
			return err
		}
	}

	a.metrics = prometheus.NewRegistry()
	m, err := metrics.New(a.metrics)
	if err != nil {
		return err
	}

	rent := capacity.Rent{PerByte: cfg.RentPerByte, Overhead: cfg.RentOverhead}
	a.store = bytestore.New(a.ledger,
		bytestore.WithLogger(a.log),
		bytestore.WithCapacity(capacity.NewManager(rent, cfg.MaxRecordSize)),
		bytestore.WithEnvelopeLayout(layout),
		bytestore.WithMetrics(m),
	)
	a.log.WithFields(logrus.Fields{
		"datadir": cfg.DataDir,
		"backend": cfg.Backend,
		"layout":  layout,
	}).Debug("store opened")
	return nil
}

func (a *app) close() error {
	var err error
	if a.ledger != nil {
		err = a.ledger.Close()
		a.ledger = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return err
}

// privateKey parses --key.
func (a *app) privateKey() (*ec.PrivateKey, error) {
	if a.keyHex == "" {
		return nil, errors.New("--key is required")
	}
	b, err := hex.DecodeString(a.keyHex)
	if err != nil || len(b) != 32 {
		return nil, errors.New("--key must be 32 bytes of hex")
	}
	priv, _ := ec.PrivateKeyFromBytes(b)
	return priv, nil
}

func (a *app) owner() (record.Owner, error) {
	priv, err := a.privateKey()
	if err != nil {
		return record.Owner{}, err
	}
	return record.OwnerFromPublicKey(priv.PubKey()), nil
}
