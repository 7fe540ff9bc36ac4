package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/urfave/cli"

	"github.com/vitwit/currency"
	"github.com/vitwit/currency/clients"
	"github.com/vitwit/currency/settlement"
	"github.com/vitwit/currency/types"
	"github.com/vitwit/currency/utils"
)

var transferFlags = []cli.Flag{
	cli.StringFlag{Name: "amount,a", Usage: "amount in display units, e.g. 1.5"},
	cli.StringFlag{Name: "to,t", Usage: "destination address"},
	cli.StringFlag{Name: "multiplier,m", Usage: "fee multiplier such as 1.2 or 6/5"},
	cli.BoolFlag{Name: "base", Usage: "treat --amount as base units"},
}

var (
	KindsCommand = cli.Command{
		Name:   "kinds",
		Usage:  "Lists every supported currency and its discriminant",
		Action: listKinds,
	}

	ParseCommand = cli.Command{
		Name:      "parse",
		Usage:     "Resolves a currency name to its discriminant",
		ArgsUsage: "<name>",
		Action:    parseKind,
	}

	PriceCommand = cli.Command{
		Name:      "price",
		Usage:     "Prints the USD price of a currency",
		ArgsUsage: "<currency>",
		Action:    price,
	}

	HeightCommand = cli.Command{
		Name:      "height",
		Usage:     "Prints the current chain height",
		ArgsUsage: "<currency>",
		Action:    height,
	}

	AddressCommand = cli.Command{
		Name:      "address",
		Usage:     "Prints the address of the configured signer",
		ArgsUsage: "<currency>",
		Action:    address,
	}

	OwnerCommand = cli.Command{
		Name:      "owner-to-address",
		Usage:     "Derives the address for an encoded public key",
		ArgsUsage: "<currency> <owner>",
		Action:    ownerToAddress,
	}

	FeeCommand = cli.Command{
		Name:      "fee",
		Usage:     "Estimates the fee of a transfer",
		ArgsUsage: "<currency>",
		Flags:     transferFlags,
		Action:    fee,
	}

	QuoteCommand = cli.Command{
		Name:      "quote",
		Usage:     "Prints fee, price and height for a prospective transfer",
		ArgsUsage: "<currency>",
		Flags:     transferFlags,
		Action:    quote,
	}

	FundCommand = cli.Command{
		Name:      "fund",
		Usage:     "Signs and broadcasts a transfer",
		ArgsUsage: "<currency>",
		Flags: append([]cli.Flag{
			cli.StringFlag{Name: "fee", Usage: "pin the fee in base units instead of estimating it"},
		}, transferFlags...),
		Action: fund,
	}

	TxCommand = cli.Command{
		Name:      "tx",
		Usage:     "Validates the shape of a transaction id",
		ArgsUsage: "<currency> <id>",
		Action:    checkTx,
	}

	HistoryCommand = cli.Command{
		Name:      "history",
		Usage:     "Lists recorded transfers from the configured database",
		ArgsUsage: "<currency>",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "limit,n", Value: 20},
		},
		Action: history,
	}
)

func listKinds(c *cli.Context) error {
	for _, k := range types.AllCurrencyKinds() {
		fmt.Printf("%d\t%s\n", k.Code(), k)
	}
	return nil
}

func parseKind(c *cli.Context) error {
	kind, err := types.ParseCurrencyKind(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(kind.Code())
	return nil
}

func price(c *cli.Context) error {
	return withCurrency(c, func(ctx context.Context, _ *runtime, cur clients.Currency) error {
		p, err := cur.Price(ctx)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	})
}

func height(c *cli.Context) error {
	return withCurrency(c, func(ctx context.Context, _ *runtime, cur clients.Currency) error {
		h, err := cur.CurrentHeight(ctx)
		if err != nil {
			return err
		}
		fmt.Println(h)
		return nil
	})
}

func address(c *cli.Context) error {
	return withCurrency(c, func(_ context.Context, _ *runtime, cur clients.Currency) error {
		owner, err := utils.SignerOwner(cur.Kind(), cur.Signer())
		if err != nil {
			return err
		}
		addr, err := cur.OwnerToAddress(owner)
		if err != nil {
			return err
		}
		fmt.Println(addr)
		return nil
	})
}

func ownerToAddress(c *cli.Context) error {
	owner := c.Args().Get(1)
	if owner == "" {
		return cli.NewExitError("owner argument is required", 1)
	}
	return withCurrency(c, func(_ context.Context, _ *runtime, cur clients.Currency) error {
		addr, err := cur.OwnerToAddress(owner)
		if err != nil {
			return err
		}
		fmt.Println(addr)
		return nil
	})
}

func fee(c *cli.Context) error {
	return withCurrency(c, func(ctx context.Context, rt *runtime, cur clients.Currency) error {
		amount, multiplier, err := rt.transfer(c, cur.Kind())
		if err != nil {
			return err
		}
		f, err := cur.EstimateFee(ctx, amount, c.String("to"), multiplier)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", f, rt.display(cur.Kind(), f))
		return nil
	})
}

func quote(c *cli.Context) error {
	return withCurrency(c, func(ctx context.Context, rt *runtime, cur clients.Currency) error {
		amount, multiplier, err := rt.transfer(c, cur.Kind())
		if err != nil {
			return err
		}
		q, err := rt.registry.Quote(ctx, cur.Kind(), amount, c.String("to"), multiplier)
		if err != nil {
			return err
		}
		if c.GlobalBool("json") {
			return printJSON(q)
		}
		fmt.Printf("currency:  %s\n", q.Currency)
		fmt.Printf("amount:    %s\n", rt.display(q.Currency, q.Amount))
		fmt.Printf("fee:       %s\n", rt.display(q.Currency, q.Fee))
		fmt.Printf("needs fee: %t\n", q.NeedsFee)
		fmt.Printf("price:     %s USD\n", q.Price)
		fmt.Printf("height:    %s\n", q.Height)
		return nil
	})
}

func fund(c *cli.Context) error {
	return withCurrency(c, func(ctx context.Context, rt *runtime, cur clients.Currency) error {
		amount, multiplier, err := rt.transfer(c, cur.Kind())
		if err != nil {
			return err
		}

		req := settlement.FundRequest{
			Currency:   cur.Kind(),
			Amount:     amount,
			To:         c.String("to"),
			Multiplier: multiplier,
		}
		if raw := c.String("fee"); raw != "" {
			req.Fee, err = utils.ParseBaseUnits(raw)
			if err != nil {
				return err
			}
		}

		res, err := rt.registry.Fund(ctx, req)
		if err != nil {
			return fmt.Errorf("fund %s failed (request %s): [%w]", cur.Kind(), res.RequestID, err)
		}
		if c.GlobalBool("json") {
			return printJSON(res.Tx)
		}
		fmt.Printf("request: %s\ntx:      %s\nfee:     %s\n", res.RequestID, res.TxID, rt.display(cur.Kind(), res.Fee))
		return nil
	})
}

func checkTx(c *cli.Context) error {
	kind, err := types.ParseCurrencyKind(c.Args().First())
	if err != nil {
		return err
	}
	if err := utils.ValidateTransactionHash(c.Args().Get(1), kind); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func history(c *cli.Context) error {
	return withCurrency(c, func(ctx context.Context, rt *runtime, cur clients.Currency) error {
		records, err := rt.registry.Transactions(ctx, cur.Kind(), c.Int("limit"))
		if err != nil {
			return err
		}
		if c.GlobalBool("json") {
			return printJSON(records)
		}
		for _, r := range records {
			status := "accepted"
			if !r.Accepted {
				status = "rejected: " + r.Error
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
				r.CreatedAt.Format("2006-01-02T15:04:05Z"), r.Tx.ID, r.Tx.To,
				rt.display(cur.Kind(), r.Tx.Amount), status)
		}
		return nil
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type runtime struct {
	config   *types.Config
	registry *currency.Registry
}

func (rt *runtime) decimals(kind types.CurrencyKind) int {
	for _, cc := range rt.config.Currencies {
		if cc.Currency == kind && cc.Decimals > 0 {
			return cc.Decimals
		}
	}
	return utils.DefaultDecimals(kind)
}

func (rt *runtime) display(kind types.CurrencyKind, v *big.Int) string {
	if v == nil {
		return "-"
	}
	return utils.FormatBaseUnits(v, rt.decimals(kind)) + " " + kind.String()
}

func (rt *runtime) transfer(c *cli.Context, kind types.CurrencyKind) (*big.Int, *big.Rat, error) {
	raw := c.String("amount")
	var (
		amount *big.Int
		err    error
	)
	if c.Bool("base") {
		amount, err = utils.ParseBaseUnits(raw)
	} else {
		amount, err = utils.ToBaseUnits(raw, rt.decimals(kind))
	}
	if err != nil {
		return nil, nil, err
	}

	multiplier, err := utils.ParseMultiplier(c.String("multiplier"))
	if err != nil {
		return nil, nil, err
	}
	return amount, multiplier, nil
}

func withCurrency(c *cli.Context, fn func(context.Context, *runtime, clients.Currency) error) error {
	kind, err := types.ParseCurrencyKind(c.Args().First())
	if err != nil {
		return err
	}

	config, err := utils.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return fmt.Errorf("failed while reading config file: [%w]", err)
	}

	// Only the requested adapter is dialed.
	selected := *config
	selected.Currencies = nil
	for _, cc := range config.Currencies {
		if cc.Currency == kind {
			selected.Currencies = append(selected.Currencies, cc)
		}
	}
	if len(selected.Currencies) == 0 {
		return fmt.Errorf("%s is not configured in %s", kind, c.GlobalString("config"))
	}

	// A single command exits before anything could scrape it.
	selected.EnableMetrics = false

	ctx := context.Background()
	registry, err := currency.NewFromConfig(ctx, &selected)
	if err != nil {
		return fmt.Errorf("failed to initialize %s: [%w]", kind, err)
	}
	defer registry.Close()

	cur, err := registry.Currency(kind)
	if err != nil {
		return err
	}
	return fn(ctx, &runtime{config: config, registry: registry}, cur)
}
