package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/spf13/cobra"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write the configuration stored with your account",
	}

	get := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a stored value as JSON, null when unset",
		Args:  cobra.ExactArgs(1),
	}
	get.RunE = func(cmd *cobra.Command, args []string) error {
		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			value, err := c.LoadConfig(ctx, args[0])
			if err != nil {
				return err
			}
			if len(value) == 0 {
				value = json.RawMessage("null")
			}
			_, err = fmt.Fprintln(w, string(value))
			return err
		})(cmd, args)
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value; VALUE is JSON, anything else is stored as a string",
		Args:  cobra.ExactArgs(2),
	}
	set.RunE = func(cmd *cobra.Command, args []string) error {
		var value interface{} = args[1]
		if json.Valid([]byte(args[1])) {
			value = json.RawMessage(args[1])
		}
		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			return c.StoreConfig(ctx, args[0], value)
		})(cmd, args)
	}

	del := &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a stored value",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = func(cmd *cobra.Command, args []string) error {
		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			return c.DeleteConfig(ctx, args[0])
		})(cmd, args)
	}

	cmd.AddCommand(get, set, del)
	return cmd
}
