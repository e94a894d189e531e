package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KurniaRadhit/Stockmate/internal/accounts"
	"github.com/KurniaRadhit/Stockmate/internal/domain"
	"github.com/KurniaRadhit/Stockmate/internal/errs"
	"github.com/KurniaRadhit/Stockmate/internal/report"
	"github.com/KurniaRadhit/Stockmate/internal/service"
)

func newRootCommand(svc *service.Service, accountStore *accounts.Store) *cobra.Command {
	root := &cobra.Command{
		Use:           "stockmate",
		Short:         "Store inventory and order queue manager",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newProductCommand(svc),
		newOrderCommand(svc),
		newQueueCommand(svc),
		newReportCommand(svc),
		newAccountCommand(accountStore),
	)
	return root
}

// ---------------- product ----------------

func newProductCommand(svc *service.Service) *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Manage warehouse and storefront stock"}
	cmd.AddCommand(
		newProductAddCommand(svc),
		newProductTransferCommand(svc),
		newProductEditCommand(svc),
		newProductRemoveCommand(svc),
		newProductListCommand(svc),
		newProductSearchCommand(svc),
		newProductUpdateCommand(svc),
		newProductTotalCommand(svc),
		newProductSweepCommand(svc),
	)
	return cmd
}

func newProductAddCommand(svc *service.Service) *cobra.Command {
	var (
		qty       int
		cost      int64
		sell      int64
		category  string
		shelfLife int
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add stock to the warehouse, registering the product if new",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := svc.AddToWarehouse(cmd.Context(), domain.AddProductRequest{
				Name:          args[0],
				Quantity:      qty,
				CostCents:     cost,
				SellCents:     sell,
				Category:      domain.Category(strings.ToLower(category)),
				ShelfLifeDays: shelfLife,
			})
			if err != nil {
				return err
			}
			fmt.Printf("warehouse: %s x%d (%s)\n", rec.Name, rec.Quantity, rec.Category)
			return nil
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 0, "units to add")
	cmd.Flags().Int64Var(&cost, "cost", 0, "cost price in cents (new products)")
	cmd.Flags().Int64Var(&sell, "sell", 0, "sell price in cents (new products)")
	cmd.Flags().StringVar(&category, "category", "", "food, beverage or electronics (new products)")
	cmd.Flags().IntVar(&shelfLife, "shelf-life", 0, "shelf life in days for perishables")
	return cmd
}

func newProductTransferCommand(svc *service.Service) *cobra.Command {
	var (
		qty      int
		discount float64
	)
	cmd := &cobra.Command{
		Use:   "transfer NAME",
		Short: "Move stock from the warehouse to the storefront",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.TransferRequest{Name: args[0], Quantity: qty}
			if cmd.Flags().Changed("discount") {
				req.DiscountPercent = &discount
			}
			rec, err := svc.Transfer(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("storefront: %s x%d @ %s (-%.1f%%)\n",
				rec.Name, rec.Quantity, formatCents(rec.SellCents), rec.DiscountPercent)
			return nil
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 0, "units to transfer")
	cmd.Flags().Float64Var(&discount, "discount", 0, "discount percent for a new storefront listing")
	return cmd
}

func newProductEditCommand(svc *service.Service) *cobra.Command {
	var (
		qty  int
		cost int64
		sell int64
	)
	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Change a warehouse record's quantity or prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req domain.WarehouseUpdateRequest
			if cmd.Flags().Changed("qty") {
				req.Quantity = &qty
			}
			if cmd.Flags().Changed("cost") {
				req.CostCents = &cost
			}
			if cmd.Flags().Changed("sell") {
				req.SellCents = &sell
			}
			if req.Quantity == nil && req.CostCents == nil && req.SellCents == nil {
				return errs.Mark(errs.New("nothing to edit, pass --qty, --cost or --sell"), errs.ErrValidation)
			}
			rec, err := svc.UpdateWarehouse(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			fmt.Printf("warehouse: %s x%d, cost %s, sell %s\n",
				rec.Name, rec.Quantity, formatCents(rec.CostCents), formatCents(rec.SellCents))
			return nil
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 0, "new absolute quantity")
	cmd.Flags().Int64Var(&cost, "cost", 0, "new cost price in cents")
	cmd.Flags().Int64Var(&sell, "sell", 0, "new sell price in cents")
	return cmd
}

func newProductRemoveCommand(svc *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Delete a product from the warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.RemoveFromWarehouse(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("removed %s from warehouse\n", args[0])
			return nil
		},
	}
}

func newProductListCommand(svc *service.Service) *cobra.Command {
	var (
		location string
		desc     bool
		category string
		inStock  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products in one location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.ListProductsRequest{
				Location:    domain.Location(strings.ToLower(location)),
				Ascending:   !desc,
				InStockOnly: inStock,
			}
			if category != "" {
				c := domain.Category(strings.ToLower(category))
				req.Category = &c
			}
			records, err := svc.ListProducts(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, rec := range records {
				expiry := "-"
				if rec.ExpiryDate != nil {
					expiry = rec.ExpiryDate.Format("2006-01-02")
				}
				fmt.Printf("%-24s %6d  %-12s sell %10s  disc %5.1f%%  expires %s\n",
					rec.Name, rec.Quantity, rec.Category, formatCents(rec.SellCents), rec.DiscountPercent, expiry)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", string(domain.LocationStorefront), "warehouse or storefront")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort names descending")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().BoolVar(&inStock, "in-stock", false, "hide zero-quantity records")
	return cmd
}

func newProductSearchCommand(svc *service.Service) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "search NAME",
		Short: "Look up one product by name, case-insensitively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := svc.SearchProduct(cmd.Context(), domain.Location(strings.ToLower(location)), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: qty %d, category %s, cost %s, sell %s, discount %.1f%% (net %s)\n",
				rec.Name, rec.Quantity, rec.Category,
				formatCents(rec.CostCents), formatCents(rec.SellCents),
				rec.DiscountPercent, formatCents(rec.DiscountedSellCents()))
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", string(domain.LocationStorefront), "warehouse or storefront")
	return cmd
}

func newProductUpdateCommand(svc *service.Service) *cobra.Command {
	var (
		sell     int64
		discount float64
	)
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Change a storefront listing's price or discount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req domain.StorefrontUpdateRequest
			if cmd.Flags().Changed("sell") {
				req.SellCents = &sell
			}
			if cmd.Flags().Changed("discount") {
				req.DiscountPercent = &discount
			}
			if req.SellCents == nil && req.DiscountPercent == nil {
				return errs.Mark(errs.New("nothing to update, pass --sell or --discount"), errs.ErrValidation)
			}
			rec, err := svc.UpdateStorefront(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			fmt.Printf("%s: sell %s, discount %.1f%% (net %s)\n",
				rec.Name, formatCents(rec.SellCents), rec.DiscountPercent, formatCents(rec.DiscountedSellCents()))
			return nil
		},
	}
	cmd.Flags().Int64Var(&sell, "sell", 0, "new sell price in cents")
	cmd.Flags().Float64Var(&discount, "discount", 0, "new discount percent")
	return cmd
}

func newProductTotalCommand(svc *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Merged warehouse plus storefront quantities per product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := svc.TotalStock(cmd.Context())
			if err != nil {
				return err
			}
			for _, row := range rows {
				fmt.Printf("%-24s %6d  %-12s sell %10s  disc %5.1f%%\n",
					row.Name, row.TotalQuantity, row.Category, formatCents(row.SellCents), row.DiscountPercent)
			}
			return nil
		},
	}
}

func newProductSweepCommand(svc *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove stock records whose expiry date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := svc.RemoveExpiredProducts(cmd.Context())
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Println("no expired products")
				return nil
			}
			for _, name := range removed {
				fmt.Printf("removed %s\n", name)
			}
			return nil
		},
	}
}

// ---------------- order ----------------

func newOrderCommand(svc *service.Service) *cobra.Command {
	cmd := &cobra.Command{Use: "order", Short: "Checkout, confirmation and the order queue"}
	cmd.AddCommand(
		newOrderCheckoutCommand(svc),
		newOrderConfirmCommand(svc),
		newOrderListCommand(svc),
		newOrderSweepCommand(svc),
	)
	return cmd
}

func newOrderCheckoutCommand(svc *service.Service) *cobra.Command {
	var (
		buyer string
		items []string
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order against storefront stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cart := &domain.Cart{}
			for _, spec := range items {
				name, qty, err := parseItemSpec(spec)
				if err != nil {
					return err
				}
				listing, err := svc.SearchProduct(cmd.Context(), domain.LocationStorefront, name)
				if err != nil {
					return err
				}
				cart.Add(listing.Name, qty, listing.SellCents, listing.DiscountPercent)
			}

			result, err := svc.Checkout(cmd.Context(), cart, buyer)
			if err != nil {
				return err
			}
			fmt.Printf("order %s for %s, total %s, queue position %d\n",
				result.OrderID, result.BuyerName, formatCents(result.TotalCents), result.Position)
			return nil
		},
	}
	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer name")
	cmd.Flags().StringArrayVar(&items, "item", nil, "cart line as NAME:QTY, repeatable")
	return cmd
}

func newOrderConfirmCommand(svc *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm",
		Short: "Confirm the oldest pending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := svc.ConfirmNext(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("confirmed %s for %s (position %d), total %s\n",
				result.OrderID, result.BuyerName, result.Position, formatCents(result.TotalCents))
			for _, name := range result.RemovedProducts {
				fmt.Printf("storefront listing %s sold out and was removed\n", name)
			}
			return nil
		},
	}
}

func newOrderListCommand(svc *service.Service) *cobra.Command {
	var (
		status string
		buyer  string
		from   string
		to     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued orders with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter domain.OrderFilter
			if status != "" {
				st := domain.OrderStatus(strings.ToLower(status))
				filter.Status = &st
			}
			filter.Buyer = buyer
			var err error
			if filter.From, err = parseDate(from); err != nil {
				return err
			}
			if filter.To, err = parseDate(to); err != nil {
				return err
			}

			orders, err := svc.ListOrders(cmd.Context(), filter)
			if err != nil {
				return err
			}
			for _, order := range orders {
				fmt.Printf("%s  %-10s %-20s %s  %s\n",
					order.ID, order.Status, order.BuyerName, order.CreatedAt.Raw(), formatCents(order.TotalCents()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending or confirmed")
	cmd.Flags().StringVar(&buyer, "buyer", "", "exact buyer name, case-insensitive")
	cmd.Flags().StringVar(&from, "from", "", "start date YYYY-MM-DD, inclusive")
	cmd.Flags().StringVar(&to, "to", "", "end date YYYY-MM-DD, exclusive")
	return cmd
}

func newOrderSweepCommand(svc *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Evict pending orders older than the confirmation window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dropped, err := svc.SweepExpiredOrders(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d expired orders removed\n", dropped)
			return nil
		},
	}
}

func newQueueCommand(svc *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the order queue with positions and tallies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := svc.QueueSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			for _, entry := range snap.Entries {
				fmt.Printf("#%d  %s  %-10s %-20s %2d items  %s\n",
					entry.Position, entry.Order.ID, entry.Order.Status, entry.Order.BuyerName,
					entry.ItemCount, formatCents(entry.TotalCents))
			}
			fmt.Printf("pending %d (%s), confirmed %d (%s)\n",
				snap.PendingCount, formatCents(snap.PendingRevenueCents),
				snap.ConfirmedCount, formatCents(snap.ConfirmedRevenueCents))
			if snap.OldestPendingPosition > 0 {
				fmt.Printf("next confirmation: position %d\n", snap.OldestPendingPosition)
			}
			return nil
		},
	}
}

// ---------------- report ----------------

func newReportCommand(svc *service.Service) *cobra.Command {
	var (
		from    string
		to      string
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Sales report over confirmed orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromT, err := parseDate(from)
			if err != nil {
				return err
			}
			toT, err := parseDate(to)
			if err != nil {
				return err
			}

			rep, err := svc.SalesReport(cmd.Context(), fromT, toT)
			if err != nil {
				return err
			}
			printReport(rep)
			if csvPath != "" {
				if err := exportReportCSV(rep, csvPath); err != nil {
					return err
				}
				fmt.Printf("exported %s\n", csvPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start date YYYY-MM-DD, inclusive")
	cmd.Flags().StringVar(&to, "to", "", "end date YYYY-MM-DD, exclusive")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also export per-product rows to this CSV file")
	return cmd
}

func printReport(rep report.SalesReport) {
	fmt.Printf("confirmed orders: %d, total %s\n", rep.ConfirmedIncluded, formatCents(rep.TotalCents))
	if rep.AveragePerDay > 0 {
		fmt.Printf("average per day: %s\n", formatCents(rep.AveragePerDay))
	}

	fmt.Println("by product:")
	for _, ps := range rep.ByProduct {
		fmt.Printf("  %-24s sold %5d  %s\n", ps.Product, ps.QtySold, formatCents(ps.TotalCents))
	}

	fmt.Println("by category:")
	for _, cs := range rep.ByCategory {
		fmt.Printf("  %-16s sold %5d  %s (%.1f%%)\n", cs.Category, cs.QtySold, formatCents(cs.TotalCents), cs.Percent)
	}

	pl := rep.ProfitLoss
	fmt.Printf("sell-through: %d/%d units (target %.1f), %.1f%%\n",
		pl.TotalUnitsSold, pl.TotalUnitsAvailable, pl.TargetUnits, pl.PercentSold)
	fmt.Printf("%s %s (%.1f%% of cost %s, sales %s)\n",
		pl.Status, formatCents(pl.AmountCents), pl.Percent,
		formatCents(pl.TotalCostCents), formatCents(pl.TotalSalesCents))
}

func exportReportCSV(rep report.SalesReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "create csv file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"product", "qty_sold", "total_cents"}); err != nil {
		return errs.Wrap(err, "write csv header")
	}
	for _, ps := range rep.ByProduct {
		row := []string{ps.Product, strconv.Itoa(ps.QtySold), strconv.FormatInt(ps.TotalCents, 10)}
		if err := w.Write(row); err != nil {
			return errs.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return errs.Wrap(w.Error(), "flush csv")
}

// ---------------- account ----------------

func newAccountCommand(accountStore *accounts.Store) *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Manage operator accounts"}

	var role string
	register := &cobra.Command{
		Use:   "register USERNAME PASSWORD",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountStore.Register(args[0], args[1], accounts.Role(strings.ToLower(role)))
			if err != nil {
				return err
			}
			fmt.Printf("registered %s (%s)\n", account.Username, account.Role)
			return nil
		},
	}
	register.Flags().StringVar(&role, "role", string(accounts.RoleUser), "user, admin or superadmin")

	login := &cobra.Command{
		Use:   "login USERNAME PASSWORD",
		Short: "Verify credentials",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountStore.Authenticate(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("welcome, %s (%s)\n", account.Username, account.Role)
			return nil
		},
	}

	passwd := &cobra.Command{
		Use:   "passwd USERNAME OLD NEW",
		Short: "Change an account password",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := accountStore.ChangePassword(args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Println("password changed")
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Remove an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := accountStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("account deleted")
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := accountStore.List()
			if err != nil {
				return err
			}
			for _, account := range all {
				fmt.Printf("%-20s %-12s since %s\n", account.Username, account.Role, account.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.AddCommand(register, login, passwd, remove, list)
	return cmd
}

// ---------------- helpers ----------------

func parseItemSpec(spec string) (string, int, error) {
	name, qtyStr, ok := strings.Cut(spec, ":")
	if !ok {
		return "", 0, errs.Mark(errs.Newf("item %q must be NAME:QTY", spec), errs.ErrValidation)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyStr))
	if err != nil || qty <= 0 {
		return "", 0, errs.Mark(errs.Newf("item %q has an invalid quantity", spec), errs.ErrValidation)
	}
	return strings.TrimSpace(name), qty, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, errs.Mark(errs.Newf("date %q must be YYYY-MM-DD", value), errs.ErrValidation)
	}
	return t, nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
