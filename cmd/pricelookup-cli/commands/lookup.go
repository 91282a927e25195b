package commands

import (
	"os"

	"github.com/RLAlpha49/shelfarc/lib/serviceutil"
	"github.com/RLAlpha49/shelfarc/services/pricelookup"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	lookupVolume      *string
	lookupVolumeTitle *string
	lookupFormat      *string
	lookupBinding     *string
	lookupHost        *string
	lookupKindle      *bool
)

func init() {
	lookupVolume = lookupCmd.Flags().String("volume", "", "The volume number to look up.")
	lookupVolumeTitle = lookupCmd.Flags().String("subtitle", "", "The volume's subtitle, if it has one.")
	lookupFormat = lookupCmd.Flags().String("format", "", "The release format, e.g. 'manga' or 'light novel'.")
	lookupBinding = lookupCmd.Flags().String("binding", "", "The wanted binding, e.g. 'Paperback'.")
	lookupHost = lookupCmd.Flags().String("host", "", "The marketplace host, e.g. 'www.amazon.co.uk'.")
	lookupKindle = lookupCmd.Flags().Bool("kindle-fallback", false, "Fall back to Kindle editions when the binding is missing.")
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <series title>",
	Short: "Looks up the current price of one volume and prints the match.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := pricelookup.NewService(pricelookup.Options{
			Host: *lookupHost,
		})

		result, err := service.Lookup(cmd.Context(), pricelookup.LookupRequest{
			SearchParams: pricelookup.SearchParams{
				Title:            args[0],
				VolumeTitle:      *lookupVolumeTitle,
				Volume:           *lookupVolume,
				Format:           *lookupFormat,
				Binding:          *lookupBinding,
				FallbackToKindle: *lookupKindle,
			},
			IncludePrice: true,
			ClientKey:    "cli",
		})
		if err != nil {
			serviceutil.Fatal("lookup failed", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRow(table.Row{"Result", result.ResultTitle})
		t.AppendRow(table.Row{"Score", result.MatchScore})
		if result.PriceText != "" {
			t.AppendRow(table.Row{"Binding", result.Binding})
			t.AppendRow(table.Row{"Price", result.PriceText})
			t.AppendRow(table.Row{"Currency", result.Currency})
		} else {
			t.AppendRow(table.Row{"Price", result.PriceError})
		}
		t.AppendRow(table.Row{"Product", result.ProductURL})
		t.AppendRow(table.Row{"Search", result.SearchURL})
		if result.UsedFallback {
			t.AppendRow(table.Row{"Note", "price taken from a lower-ranked matching result"})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
