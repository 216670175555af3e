package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/receipt"
)

var receiptFlags struct {
	user         string
	itemID       int64
	warehouseID  int64
	qty          string
	cost         string
	costManual   bool
	noCostAdjust bool
	doc          string
	notes        string
	date         string
	woID         int64
	alloc        []string
}

var receiptCmd = &cobra.Command{
	Use:   "receipt",
	Short: "Post a miscellaneous material receipt",
	Long: `Post a material receipt into an item site and print the resulting form
state as JSON. Location controlled item sites need one --alloc per location.`,
	Args: cobra.NoArgs,
	RunE: runReceipt,
}

func init() {
	f := receiptCmd.Flags()
	f.StringVarP(&receiptFlags.user, "user", "u", "", "acting user (default: the admin user)")
	f.Int64Var(&receiptFlags.itemID, "item-id", 0, "item id")
	f.Int64Var(&receiptFlags.warehouseID, "warehouse-id", 0, "site id")
	f.StringVarP(&receiptFlags.qty, "qty", "q", "", "quantity to receive")
	f.StringVar(&receiptFlags.cost, "cost", "", "total cost of a manual cost adjustment")
	f.BoolVar(&receiptFlags.costManual, "cost-manual", false, "adjust the value by --cost")
	f.BoolVar(&receiptFlags.noCostAdjust, "no-cost-adjust", false, "leave the item site value unchanged")
	f.StringVar(&receiptFlags.doc, "doc", "", "document number")
	f.StringVar(&receiptFlags.notes, "notes", "", "transaction notes")
	f.StringVar(&receiptFlags.date, "date", "", "transaction date (YYYY-MM-DD)")
	f.Int64Var(&receiptFlags.woID, "wo", 0, "work order to issue the receipt to")
	f.StringArrayVar(&receiptFlags.alloc, "alloc", nil, "location distribution as LOCATION_ID=QTY")
	receiptCmd.MarkFlagRequired("item-id")
	receiptCmd.MarkFlagRequired("qty")

	rootCmd.AddCommand(receiptCmd)
}

func runReceipt(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	user, privs, err := a.actingUser(ctx, receiptFlags.user)
	if err != nil {
		return err
	}

	lines, err := parseAllocations(receiptFlags.alloc)
	if err != nil {
		return err
	}

	entry := receipt.Entry{
		ItemID:      receiptFlags.itemID,
		WarehouseID: receiptFlags.warehouseID,
		IssueToWo:   receiptFlags.woID != 0,
		WoID:        receiptFlags.woID,
		Qty:         receiptFlags.qty,
		Cost:        receiptFlags.cost,
		DocNumber:   receiptFlags.doc,
		Notes:       receiptFlags.notes,
	}
	if cmd.Flags().Changed("cost-manual") {
		entry.CostManual = &receiptFlags.costManual
	}
	if receiptFlags.noCostAdjust {
		adjust := false
		entry.CostAdjust = &adjust
	}
	if receiptFlags.date != "" {
		d, err := time.ParseInLocation(time.DateOnly, receiptFlags.date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", receiptFlags.date, err)
		}
		entry.TransDate = d
	}

	var issuer receipt.Issuer
	if privs.Has(model.PrivIssueWoMaterials) {
		issuer = receipt.LedgerIssuer{Ledger: a.ledger, User: user.Username, Date: entry.TransDate}
	}

	form, err := receipt.New(ctx, a.ledger, receipt.Options{
		Distributor: receipt.Allocations{Ledger: a.ledger, Lines: lines},
		Issuer:      issuer,
		Privileges:  privs,
		User:        user.Username,
	})
	if err != nil {
		return err
	}
	form.SetCaptive(true)

	if entry.WarehouseID == 0 {
		if ds, ok := a.ledger.(interface {
			DefaultSite(ctx context.Context) (int64, error)
		}); ok && form.State().SiteHidden {
			if entry.WarehouseID, err = ds.DefaultSite(ctx); err != nil {
				return err
			}
		}
	}
	if entry.WarehouseID == 0 {
		return fmt.Errorf("--warehouse-id is required")
	}

	if err := form.Enter(ctx, entry); err != nil {
		return err
	}
	outcome, err := form.Post(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", outcome, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Outcome string        `json:"outcome"`
		State   receipt.State `json:"state"`
	}{outcome.String(), form.State()})
}

// parseAllocations reads LOCATION_ID=QTY pairs.
func parseAllocations(pairs []string) ([]model.LocationQty, error) {
	lines := make([]model.LocationQty, 0, len(pairs))
	for _, p := range pairs {
		loc, qty, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --alloc %q: want LOCATION_ID=QTY", p)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(loc), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid location in --alloc %q: %w", p, err)
		}
		q, err := decimal.NewFromString(strings.TrimSpace(qty))
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in --alloc %q: %w", p, err)
		}
		lines = append(lines, model.LocationQty{LocationID: id, Qty: q})
	}
	return lines, nil
}
