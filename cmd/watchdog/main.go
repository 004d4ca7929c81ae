// Command watchdog supervises the solarcontroller process. It runs
// separately on purpose: a deadlocked controller must still get
// restarted, so the two share nothing but the heartbeat file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/config"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/watchdog"
	"github.com/koding/multiconfig"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()
	err := Run(ctx)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	config := &config.WatchdogConfig{}
	err := multiconfig.New().Load(config)
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return fmt.Errorf("error setting logrus loglevel: %w", err)
	}
	logrus.SetLevel(lvl)

	err = config.Validate()
	if err != nil {
		return err
	}

	logrus.Infof("watching heartbeat file %s", config.HeartbeatFile)
	watchdog.New(*config).Run(ctx)
	return nil
}
