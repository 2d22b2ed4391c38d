// Command tronctl runs router operations from the shell.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v3"

	"github.com/web3-frozen/tron-source-router/internal/app"
	"github.com/web3-frozen/tron-source-router/internal/config"
	"github.com/web3-frozen/tron-source-router/internal/estimate"
	"github.com/web3-frozen/tron-source-router/internal/router"
	"github.com/web3-frozen/tron-source-router/internal/tools"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "tronctl",
		Usage: "query TRON through the primary node, the gateway and the explorer",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log routing decisions to stderr"},
		},
		Commands: []*cli.Command{
			{
				Name:   "ops",
				Usage:  "list the available operations",
				Action: runOps,
			},
			{
				Name:      "call",
				Usage:     "run one operation and print its JSON result",
				ArgsUsage: "<operation>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "args", Value: "{}", Usage: "operation arguments as a JSON object"},
				},
				Action: runCall,
			},
			{
				Name:  "estimate",
				Usage: "print the offline heuristic energy estimate for a call",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "function", Required: true, Usage: "function name or signature"},
					&cli.StringFlag{Name: "contract", Required: true, Usage: "contract address"},
					&cli.StringFlag{Name: "recipient", Usage: "transfer recipient address"},
					&cli.StringFlag{Name: "params", Value: "[]", Usage: `parameters as JSON, e.g. [{"type":"uint256","value":"1"}]`},
					&cli.StringFlag{Name: "heuristics", Usage: "heuristics table file (default: embedded)"},
				},
				Action: runEstimate,
			},
		},
	}
}

func logger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelError
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printJSON(w io.Writer, v any) error {
	b, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func runOps(ctx context.Context, cmd *cli.Command) error {
	// Listing needs no backend.
	svc := tools.NewService(router.New(nil), tools.Backends{})
	reg := tools.NewRegistry(svc, nil)
	for _, t := range reg.List() {
		names := make([]string, 0, len(t.Args))
		for _, a := range t.Args {
			if a.Required {
				names = append(names, a.Name)
			} else {
				names = append(names, a.Name+"?")
			}
		}
		kind := "read"
		if t.Write {
			kind = "write"
		}
		fmt.Fprintf(cmd.Root().Writer, "%-22s %-5s {%s}  %s\n", t.Name, kind, strings.Join(names, ", "), t.Description)
	}
	return nil
}

func runCall(ctx context.Context, cmd *cli.Command) error {
	op := cmd.Args().First()
	if op == "" {
		return fmt.Errorf("usage: tronctl call <operation> --args '{...}'")
	}
	a, err := app.Build(ctx, config.Load(), app.Options{SkipDatabase: true}, logger(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Registry.Invoke(ctx, op, []byte(cmd.String("args")))
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, res)
}

func runEstimate(ctx context.Context, cmd *cli.Command) error {
	h, err := estimate.Load(cmd.String("heuristics"))
	if err != nil {
		return err
	}
	var params []tron.Param
	if err := sonic.UnmarshalString(cmd.String("params"), &params); err != nil {
		return fmt.Errorf("parse --params: %w", err)
	}
	contract := tron.NormalizeBase58(cmd.String("contract"))
	if err := tron.ValidateAddress(contract); err != nil {
		return err
	}

	res := h.Estimate(estimate.Input{
		Function:  cmd.String("function"),
		Params:    params,
		Contract:  contract,
		Recipient: cmd.String("recipient"),
	})
	out := map[string]any{
		"energy":         res.Energy,
		"rule":           res.Rule,
		"energyPriceSun": h.EnergyPriceSun(),
		"costTrx":        estimate.CostTRX(res.Energy, h.EnergyPriceSun()),
	}
	if h.BranchesOnRecipient(cmd.String("function"), contract) {
		out["recipientStatus"] = res.RecipientStatus
	}
	return printJSON(cmd.Root().Writer, out)
}
