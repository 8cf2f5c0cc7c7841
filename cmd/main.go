package main

import (
	"fmt"
	"os"

	"tradedeck/cmd/pricefeed"
	"tradedeck/cmd/syncd"
	"tradedeck/src/database"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Tradedeck CMD"
	app.Usage = "The Tradedeck command line interface"

	app.Commands = []cli.Command{
		syncdCMD,
		priceFeedCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	syncdCMD = cli.Command{
		Name:        "syncd",
		Usage:       "run the live sync daemon",
		Action:      syncdAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the change-stream sync daemon CMD`,
	}
	priceFeedCMD = cli.Command{
		Name:        "pricefeed",
		Usage:       "run the asset price feed",
		Action:      priceFeedAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the asset price feed CMD`,
	}
)

func syncdAction(_ *cli.Context) error {

	logrus.Info("Starting syncd CMD")

	daemon := &syncd.SyncDaemon{
		Log: logrus.WithField("cmd", "syncd"),
	}
	err := daemon.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

// priceFeedAction polls exchange tickers into the assets table.
func priceFeedAction(_ *cli.Context) error {

	logrus.Info("Starting price feed CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	feed := &pricefeed.PriceFeed{
		Log: logrus.WithField("cmd", "pricefeed"),
		DB:  database.MainDB,
	}

	err := feed.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting price feed cmd")
		return err
	}

	return nil
}
