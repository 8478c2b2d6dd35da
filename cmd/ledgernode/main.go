// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Command ledgernode runs one node of the didactic ledger network: it
// binds a listening socket, optionally dials seed/bootstrap peers and
// syncs its chain, optionally mines one block, then blocks until
// terminated.
package main

import (
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ufpa-lsd/blockchain-lsd/internal/config"
	"github.com/ufpa-lsd/blockchain-lsd/internal/logging"
	"github.com/ufpa-lsd/blockchain-lsd/internal/metrics"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/core/chain"
	"github.com/ufpa-lsd/blockchain-lsd/pkg/p2p/peer"
)

var log = logger.WithFields(logger.Fields{"prefix": "ledgernode"})

func main() {
	app := &cli.App{
		Name:  "ledgernode",
		Usage: "run a node of the didactic ledger network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "listen host"},
			&cli.IntFlag{Name: "port", Value: 9000, Usage: "listen port"},
			&cli.StringFlag{Name: "config", Usage: "path to a node TOML config"},
			&cli.StringFlag{Name: "miner-config", Usage: "path to a miner .properties config"},
			&cli.StringFlag{Name: "peers-file", Usage: "path to a YAML peer seed file"},
			&cli.StringSliceFlag{Name: "bootstrap", Usage: "host:port of a peer to dial at startup"},
			&cli.BoolFlag{Name: "mine", Usage: "run one mining pass after startup"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "host:port to serve /metrics on, if set"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("ledgernode exited with error")
	}
}

func run(c *cli.Context) error {
	nodeCfg, err := config.LoadNodeConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("host") {
		nodeCfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		nodeCfg.Port = c.Int("port")
	}

	if err := logging.Configure(nodeCfg.LogLevel, nodeCfg.LogPath); err != nil {
		return err
	}

	tuning, err := config.LoadMinerTuning(c.String("miner-config"))
	if err != nil {
		return err
	}

	seeds, err := config.LoadPeerSeeds(c.String("peers-file"))
	if err != nil {
		return err
	}

	n := peer.New(nodeCfg.Addr(), chain.New())
	n.SetTimeouts(tuning.DialTimeout, tuning.ReadTimeout)
	n.SetProgressReportEvery(tuning.ProgressReportEvery)

	if err := n.Start(); err != nil {
		return err
	}
	defer n.Stop()

	for _, s := range seeds {
		if err := n.ConnectToPeer(s); err != nil {
			log.WithError(err).WithField("peer", s).Warn("seed peer unreachable")
		}
	}
	for _, b := range c.StringSlice("bootstrap") {
		if err := n.ConnectToPeer(b); err != nil {
			log.WithError(err).WithField("peer", b).Warn("bootstrap peer unreachable")
		}
	}

	if addr := c.String("metrics-addr"); addr != "" {
		go func() {
			if err := metrics.Serve(addr, n); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	n.SyncBlockchain()

	if c.Bool("mine") {
		if b := n.Mine(); b != nil {
			log.WithField("index", b.Index).Info("mined a block")
		}
	}

	log.WithField("addr", nodeCfg.Addr()).Info("ledgernode running")
	waitForShutdown()
	return nil
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
