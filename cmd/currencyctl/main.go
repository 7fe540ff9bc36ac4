package main

import (
	"log"
	"os"
	"path"
	"time"

	"github.com/urfave/cli"

	"github.com/vitwit/currency"
)

const defaultConfigPath = "./configs/currency.toml"

var configPath string

func main() {
	app := cli.NewApp()
	app.Name = path.Base(os.Args[0])
	app.Usage = "Inspect and fund accounts across Arweave, Solana, Ethereum, ERC-20 and Cosmos"
	app.Version = currency.Version
	app.Compiled = time.Now()
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config,c",
			Value:       defaultConfigPath,
			Destination: &configPath,
			Usage:       "full path to the configuration file (toml, yaml or json)",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "print quote, fund and history results as JSON",
		},
	}
	app.Commands = []cli.Command{
		KindsCommand,
		ParseCommand,
		PriceCommand,
		HeightCommand,
		AddressCommand,
		OwnerCommand,
		FeeCommand,
		QuoteCommand,
		FundCommand,
		TxCommand,
		HistoryCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
