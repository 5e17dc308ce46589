package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "walletctl",
		Usage: "Drive a wallet through the adapter: sign messages, send transfers, expose a local gateway",
		Description: `walletctl connects to a wallet either through a bridged popup window
(WALLET_BRIDGE_ENDPOINTS) or an in-process development wallet (--injected),
then runs one of the demo flows.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"WALLETCTL_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "provider-url",
				Usage:   "Wallet page URL opened in the popup",
				EnvVars: []string{"WALLET_PROVIDER_URL"},
			},
			&cli.BoolFlag{
				Name:  "injected",
				Usage: "Use an in-process development wallet instead of a popup",
			},
			&cli.StringFlag{
				Name:    "network",
				Aliases: []string{"n"},
				Usage:   "Target network passed to the wallet (mainnet-beta, devnet, testnet, localnet)",
				EnvVars: []string{"WALLET_NETWORK"},
			},
			&cli.StringFlag{
				Name:    "origin",
				Usage:   "Origin this client identifies as",
				EnvVars: []string{"WALLET_ORIGIN"},
			},
			&cli.StringFlag{
				Name:    "rpc",
				Usage:   "Ledger RPC endpoint or network alias (defaults to --network)",
				EnvVars: []string{"WALLET_RPC_ENDPOINT"},
			},
			&cli.DurationFlag{
				Name:  "connect-timeout",
				Usage: "How long to wait for the wallet to approve the connection",
				Value: defaultConnectTimeout,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sign-message",
				Usage: "Ask the wallet to sign a message",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "message",
						Aliases:  []string{"m"},
						Usage:    "Message to sign",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "display",
						Usage: "How the wallet should display the message (utf8 or hex)",
						Value: "utf8",
					},
				},
				Action: signMessageAction,
			},
			{
				Name:  "transfer",
				Usage: "Build a transfer, have the wallet sign it, submit and confirm",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "to",
						Usage: "Recipient address (defaults to the wallet itself)",
					},
					&cli.Uint64Flag{
						Name:  "lamports",
						Usage: "Amount to transfer",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "no-confirm",
						Usage: "Return after submission without waiting for confirmation",
					},
				},
				Action: transferAction,
			},
			{
				Name:  "serve",
				Usage: "Expose the wallet over a local HTTP gateway with /metrics",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "HTTP listen address",
						EnvVars: []string{"WALLETCTL_HTTP_ADDR"},
					},
				},
				Action: serveAction,
			},
		},
	}
}
