package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/izavyalov-dev/recipebox/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "recipesctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "recipesctl",
		Usage: "Manage recipes through the recipesd gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:3000",
				Usage:   "Gateway base URL",
				Sources: cli.EnvVars("RECIPES_SERVER"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a recipe",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := requireArg(cmd, 0, "name")
					if err != nil {
						return err
					}
					rec, err := newClient(cmd).AddRecipe(ctx, name)
					if err != nil {
						return err
					}
					return printJSON(out, rec)
				},
			},
			{
				Name:      "get",
				Usage:     "Show one recipe",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, 0, "id")
					if err != nil {
						return err
					}
					rec, err := newClient(cmd).Recipe(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(out, rec)
				},
			},
			{
				Name:  "list",
				Usage: "List recipes in insertion order",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Return at most this many recipes (0 for all)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					list, err := newClient(cmd).Recipes(ctx, int(cmd.Int("limit")))
					if err != nil {
						return err
					}
					return printJSON(out, list)
				},
			},
			{
				Name:      "update",
				Usage:     "Rename a recipe",
				ArgsUsage: "<id> <name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, 0, "id")
					if err != nil {
						return err
					}
					name, err := requireArg(cmd, 1, "name")
					if err != nil {
						return err
					}
					rec, err := newClient(cmd).UpdateRecipe(ctx, id, name)
					if err != nil {
						return err
					}
					return printJSON(out, rec)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a recipe",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, 0, "id")
					if err != nil {
						return err
					}
					rec, err := newClient(cmd).DeleteRecipe(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(out, rec)
				},
			},
		},
	}
}

func newClient(cmd *cli.Command) *client.HTTPClient {
	return client.New(cmd.String("server"))
}

func requireArg(cmd *cli.Command, index int, name string) (string, error) {
	if cmd.Args().Len() <= index {
		return "", errors.New(name + " argument is required")
	}
	return cmd.Args().Get(index), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
