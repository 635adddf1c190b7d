package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alexbotov/decktutor/pkg/decktutor"
	"github.com/spf13/cobra"
)

// PageFlags are the paging flags of the search commands
type PageFlags struct {
	Offset int
	Limit  int
	Order  string
}

func (f *PageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "Number of results to skip")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of results, 0 for the service default")
	cmd.Flags().StringVar(&f.Order, "order", "", "Ordering as column or column,asc|desc")
}

func (a *app) newCardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Search the card database",
	}

	names := &cobra.Command{
		Use:   "names QUERY",
		Short: "List card names starting with QUERY",
		Args:  cobra.ExactArgs(1),
	}
	names.RunE = func(cmd *cobra.Command, args []string) error {
		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			found, err := c.FindCardNames(ctx, args[0])
			if err != nil {
				return err
			}
			return a.print(w, found, func(w io.Writer) {
				for _, name := range found {
					fmt.Fprintln(w, name)
				}
			})
		})(cmd, args)
	}

	var set string
	page := &PageFlags{}
	versions := &cobra.Command{
		Use:   "versions [NAME]",
		Short: "List the printings of a card, or of a whole set with --set",
		Args:  cobra.MaximumNArgs(1),
	}
	versions.Flags().StringVar(&set, "set", "", "Set code to search in")
	page.register(versions)
	versions.RunE = func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" && set == "" {
			return fmt.Errorf("a card name or --set must be specified")
		}
		order, err := decktutor.ParseOrder(page.Order)
		if err != nil {
			return err
		}
		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			found, err := c.FindCardVersions(ctx, name, set, page.Offset, page.Limit, order)
			if err != nil {
				return err
			}
			return a.print(w, found, func(w io.Writer) { printVersions(w, found) })
		})(cmd, args)
	}

	cmd.AddCommand(names, versions)
	return cmd
}

// SerpFlags holds the listing search filters
type SerpFlags struct {
	Name     string
	Set      string
	Language string
	State    string
	Foil     string
	MinPrice int64
	MaxPrice int64
}

// Validate builds the search
func (f *SerpFlags) Validate(game decktutor.Game) (*decktutor.Search, error) {
	search := &decktutor.Search{
		Game:     game,
		Name:     f.Name,
		Set:      f.Set,
		Language: decktutor.CardLanguage(strings.ToLower(f.Language)),
		State:    decktutor.CardState(strings.ToUpper(f.State)),
		MinPrice: f.MinPrice,
		MaxPrice: f.MaxPrice,
	}
	if search.Language != "" && !search.Language.Valid() {
		return nil, fmt.Errorf("unknown language %q", f.Language)
	}
	if search.State != "" && !search.State.Valid() {
		return nil, fmt.Errorf("unknown card state %q", f.State)
	}
	if f.Foil != "" {
		foil, err := strconv.ParseBool(f.Foil)
		if err != nil {
			return nil, fmt.Errorf("--foil must be true or false: %w", err)
		}
		search.Foil = &foil
	}
	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return nil, fmt.Errorf("--min-price is above --max-price")
	}
	return search, nil
}

func (a *app) newSerpCmd() *cobra.Command {
	f := &SerpFlags{}
	page := &PageFlags{}

	cmd := &cobra.Command{
		Use:   "serp",
		Short: "Search the cards for sale",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "Card name, or part of it")
	cmd.Flags().StringVar(&f.Set, "set", "", "Set code")
	cmd.Flags().StringVar(&f.Language, "language", "", "Print language (en, it, ja, ...)")
	cmd.Flags().StringVar(&f.State, "state", "", "Card condition (M, NM, EX, VG, GD, PL, PO)")
	cmd.Flags().StringVar(&f.Foil, "foil", "", "Only foil (true) or non-foil (false) copies")
	cmd.Flags().Int64Var(&f.MinPrice, "min-price", 0, "Minimum price in cents")
	cmd.Flags().Int64Var(&f.MaxPrice, "max-price", 0, "Maximum price in cents")
	page.register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		order, err := decktutor.ParseOrder(page.Order)
		if err != nil {
			return err
		}
		return a.withClient(func(ctx context.Context, c *decktutor.Client, w io.Writer) error {
			search, err := f.Validate(c.Game())
			if err != nil {
				return err
			}
			listings, err := c.Serp(ctx, search, page.Offset, page.Limit, order)
			if err != nil {
				return err
			}
			return a.print(w, listings, func(w io.Writer) { printListings(w, listings) })
		})(cmd, args)
	}

	return cmd
}
