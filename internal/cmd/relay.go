package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gimbalkit/gimbal/internal/log"
	"github.com/gimbalkit/gimbal/internal/relay"
	"github.com/gimbalkit/gimbal/spnav"
)

type Relay struct {
	ListenAddr  string        `help:"Relay listen address" default:":3240" env:"GIMBAL_RELAY_ADDR"`
	Socket      string        `help:"Daemon socket path or TCP address to republish; empty tries $SPNAV_SOCKET then the default" env:"GIMBAL_SOCKET"`
	DialTimeout time.Duration `help:"Daemon dial timeout" default:"10s" env:"GIMBAL_RELAY_TIMEOUT"`
	Key         string        `help:"Seal relayed traffic with this passphrase" env:"GIMBAL_RELAY_KEY"`
	GenKey      bool          `help:"Print a fresh relay passphrase and exit"`
}

// Run is called by Kong when the relay command is executed.
func (r *Relay) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	if r.GenKey {
		key, err := relay.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var key []byte
	if r.Key != "" {
		var err error
		key, err = relay.DeriveKey(r.Key)
		if err != nil {
			return err
		}
	}

	socket := spnav.SocketPath(r.Socket)
	logger.Info("Starting event relay", "listen", r.ListenAddr, "upstream", socket)
	srv := relay.New(r.ListenAddr, socket, r.DialTimeout, key, logger, rawLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down relay")
		_ = srv.Close()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
