package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/erazemk/nabava/internal/purchasing"
	"github.com/erazemk/nabava/internal/script"
	"github.com/erazemk/nabava/internal/store"
	"github.com/erazemk/nabava/internal/sweep"
)

var poitemsFlags struct {
	start       string
	end         string
	warehouseID int64
	agent       string
	items       string
	user        string
}

var poitemsCmd = &cobra.Command{
	Use:   "poitems",
	Short: "List purchase order items by due date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		_, privs, err := a.actingUser(ctx, poitemsFlags.user)
		if err != nil {
			return err
		}

		params := purchasing.Params{
			WarehouseID: poitemsFlags.warehouseID,
			Agent:       poitemsFlags.agent,
			Items:       poitemsFlags.items,
		}
		if params.Start, err = cliRangeDate(poitemsFlags.start); err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		if params.End, err = cliRangeDate(poitemsFlags.end); err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}

		d := purchasing.New(a.ledger, &purchasing.Answers{Repo: a.ledger}, privs)
		if err := d.SetParams(params); err != nil {
			return err
		}
		if err := d.Fill(ctx); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "P/O #\tLINE\tSTATUS\tVENDOR\tDUE\tITEM\tORDERED\tRECEIVED\tRETURNED")
		for _, p := range d.Rows() {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				p.PoNumber, p.LineNumber, p.StatusLabel, p.VendorName,
				p.DueDate.Format(time.DateOnly), p.ItemNumber,
				p.QtyOrdered.String(), p.QtyReceived.String(), p.QtyReturned.String())
		}
		return tw.Flush()
	},
}

var scriptTimeout time.Duration

var scriptCmd = &cobra.Command{
	Use:   "script <file>",
	Short: "Run a script with the network reply binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}
		_, closeLog, err := loadConfig(true)
		if err != nil {
			return err
		}
		defer closeLog()

		client := &http.Client{Timeout: scriptTimeout}
		v, err := script.Run(cmd.Context(), client, args[0], string(src), os.Stdout)
		if err != nil {
			return err
		}
		if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			fmt.Println(v.String())
		}
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge distribution series left behind by interrupted receipts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		l, ok := a.ledger.(store.Ledger)
		if !ok {
			return fmt.Errorf("sweep is not supported by the %s ledger", a.cfg.Ledger.Driver)
		}
		s := &sweep.Sweeper{Purger: l, Tokens: store.Revocations{DB: a.db}, MaxAge: a.cfg.Sweep.MaxAge}
		purged, err := s.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d series.\n", len(purged))
		return nil
	},
}

func init() {
	f := poitemsCmd.Flags()
	f.StringVar(&poitemsFlags.start, "start", "earliest", "first due date (YYYY-MM-DD or earliest)")
	f.StringVar(&poitemsFlags.end, "end", "latest", "last due date (YYYY-MM-DD or latest)")
	f.Int64Var(&poitemsFlags.warehouseID, "warehouse", 0, "site id (default: all sites)")
	f.StringVar(&poitemsFlags.agent, "agent", "", "purchasing agent")
	f.StringVar(&poitemsFlags.items, "items", "", "item filter: all, open or closed")
	f.StringVarP(&poitemsFlags.user, "user", "u", "", "acting user (default: the admin user)")

	scriptCmd.Flags().DurationVar(&scriptTimeout, "timeout", 30*time.Second, "timeout of each network request")

	sweepCmd.Flags().Duration("max-age", 24*time.Hour, "purge series staged longer ago than this")
	v.BindPFlag("sweep.max_age", sweepCmd.Flags().Lookup("max-age"))

	rootCmd.AddCommand(poitemsCmd, scriptCmd, sweepCmd)
}

// cliRangeDate reads a date or one of the words earliest and latest.
func cliRangeDate(s string) (time.Time, error) {
	switch strings.ToLower(s) {
	case "earliest":
		return purchasing.Earliest, nil
	case "latest":
		return purchasing.Latest, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}
