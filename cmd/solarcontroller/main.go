package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/app"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/config"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/hwdriver"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/version"
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
	config := &config.CliConfig{}
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

	logrus.Infof("starting solarcontroller %s", version.String())

	var driver hwdriver.Driver
	if config.Address != "" {
		driver = hwdriver.NewModbus(config.Address, byte(config.SlaveID))
	} else {
		logrus.Warn("no modbus address configured, using dummy driver")
		driver = hwdriver.NewDummy()
	}

	app := app.New(config, driver)

	err = app.Start(ctx)
	if err != nil {
		return err
	}

	app.Wait()
	return nil
}
