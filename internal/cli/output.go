package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alexbotov/decktutor/pkg/decktutor"
)

// print writes v as indented JSON, or through text for the text output
func (a *app) print(w io.Writer, v interface{}, text func(io.Writer)) error {
	if a.flags.Output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func formatPrice(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

func printVersions(w io.Writer, versions []decktutor.CardVersion) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSET\tNAME\tNUMBER\tRARITY")
	for _, v := range versions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Set, v.Name, v.Number, v.Rarity)
	}
	tw.Flush()
}

func printListings(w io.Writer, listings []decktutor.Listing) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCARD\tSET\tSTATE\tLANG\tFOIL\tQTY\tPRICE\tSELLER")
	for _, l := range listings {
		foil := ""
		if l.Foil {
			foil = "foil"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ID, l.Card.Name, l.Card.Set, l.State, l.Language, foil, l.Quantity,
			formatPrice(l.Price, l.Currency), l.Seller)
	}
	tw.Flush()
}
