package repl

import (
	"fmt"
	"io"
	"strings"

	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"
)

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `Sale:
  <text>                   search the catalog (same as /search)
  /search <text>           search by name, category, description or barcode
  /browse                  list available products
  /add <n|id> [qty]        add search result n (or a product id) to the cart
  /qty <line> <qty>        change a cart line quantity (0 removes it)
  /rm <line>               remove a cart line
  /cart                    show the cart
  /submit                  charge the sale and print the invoice
  /clear                   discard the cart
  /refresh                 reload the catalog
Stock & reports:
  /products                list every product
  /movements [n]           recent stock movements
  /import <path>           add stock from an invoice photo or .xlsx file
  /invoices                list invoices
  /invoice <id>            show one invoice
  /report [year month]     monthly sales summary
  /exit                    leave`)
}

func printSearch(out io.Writer, term string, products []core.Product) {
	if len(products) == 0 {
		if term == "" {
			fmt.Fprintln(out, "No products available for sale.")
		} else {
			fmt.Fprintf(out, "No products match %q.\n", term)
		}
		return
	}
	fmt.Fprintf(out, "  %-3s %-32s %-14s %8s %10s\n", "#", "NAME", "CATEGORY", "STOCK", "PRICE")
	for i, p := range products {
		fmt.Fprintf(out, "  %-3d %-32s %-14s %8d %10s\n", i+1, p.Name, p.Category, p.Quantity, p.UnitPrice.StringFixed(2))
	}
}

func printCart(out io.Writer, cart *pos.Cart) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	if cart == nil {
		fmt.Fprintln(out, "  No open cart.")
		fmt.Fprintln(out, strings.Repeat("=", 70))
		return
	}
	fmt.Fprintf(out, "  CART (%s)\n", cart.State())
	fmt.Fprintln(out, strings.Repeat("=", 70))
	lines := cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(out, "  Cart is empty.")
	} else {
		fmt.Fprintf(out, "  %-3s %-30s %6s %10s %12s\n", "#", "PRODUCT", "QTY", "PRICE", "SUBTOTAL")
		fmt.Fprintln(out, strings.Repeat("-", 70))
		for i, l := range lines {
			fmt.Fprintf(out, "  %-3d %-30s %3d/%-3d %9s %12s\n",
				i+1, l.Product.Name, l.Quantity, l.Available(), l.UnitPrice.StringFixed(2), l.Subtotal().StringFixed(2))
		}
	}
	fmt.Fprintln(out, strings.Repeat("-", 70))
	fmt.Fprintf(out, "  %-46s %6d items %9s\n", "TOTAL", cart.ItemCount(), cart.Total().StringFixed(2))
	if n := cart.Notice(); n != "" {
		fmt.Fprintf(out, "  ! %s\n", n)
	}
	if err := cart.LastError(); err != nil {
		fmt.Fprintf(out, "  ! last submit failed: %s\n", describe(err))
	}
	fmt.Fprintln(out, strings.Repeat("=", 70))
}

func printReceipt(out io.Writer, r *pos.Receipt) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "  INVOICE %s   %s\n", r.InvoiceNumber, r.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(out, strings.Repeat("=", 70))
	for _, it := range r.Items {
		fmt.Fprintf(out, "  %-36s %4d x %9s %12s\n", it.ProductName, it.Quantity, it.UnitPrice.StringFixed(2), it.Subtotal.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 70))
	fmt.Fprintf(out, "  %-56s %11s\n", "TOTAL", r.Total.StringFixed(2))
	if r.PriceMismatch {
		fmt.Fprintf(out, "  Note: prices changed since the cart was built (cart showed %s).\n", r.CartTotal.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("=", 70))
}

func printProducts(out io.Writer, result *app.ProductListResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintln(out, "  PRODUCTS")
	fmt.Fprintln(out, strings.Repeat("=", 78))
	if len(result.Products) == 0 {
		fmt.Fprintln(out, "  No products found.")
		fmt.Fprintln(out, strings.Repeat("=", 78))
		return
	}
	fmt.Fprintf(out, "  %-28s %-12s %6s %-6s %10s  %-12s %s\n", "NAME", "CATEGORY", "QTY", "UNIT", "PRICE", "STATUS", "EXPIRY")
	fmt.Fprintln(out, strings.Repeat("-", 78))
	for _, p := range result.Products {
		expiry := string(p.ExpirationStatus)
		if p.DaysToExpiry != nil {
			expiry = fmt.Sprintf("%s (%dd)", expiry, *p.DaysToExpiry)
		}
		fmt.Fprintf(out, "  %-28s %-12s %6d %-6s %10s  %-12s %s\n",
			p.Name, p.Category, p.Quantity, p.Unit, p.UnitPrice.StringFixed(2), p.Status, expiry)
	}
	fmt.Fprintln(out, strings.Repeat("=", 78))
}

func printMovements(out io.Writer, result *app.MovementListResult) {
	if len(result.Movements) == 0 {
		fmt.Fprintln(out, "No stock movements yet.")
		return
	}
	fmt.Fprintf(out, "  %-16s %-8s %-26s %6s %6s %7s  %s\n", "WHEN", "TYPE", "PRODUCT", "BEFORE", "AFTER", "CHANGE", "REASON")
	for _, m := range result.Movements {
		fmt.Fprintf(out, "  %-16s %-8s %-26s %6d %6d %+7d  %s\n",
			m.CreatedAt.Format("2006-01-02 15:04"), m.Type, m.ProductName,
			m.QuantityBefore, m.QuantityAfter, m.QuantityChange, m.Reason)
	}
}

func printInvoices(out io.Writer, result *app.InvoiceListResult) {
	if len(result.Invoices) == 0 {
		fmt.Fprintln(out, "No invoices yet.")
		return
	}
	fmt.Fprintf(out, "  %-16s %-16s %6s %12s  %s\n", "NUMBER", "DATE", "ITEMS", "TOTAL", "ID")
	for _, inv := range result.Invoices {
		fmt.Fprintf(out, "  %-16s %-16s %6d %12s  %s\n",
			inv.InvoiceNumber, inv.CreatedAt.Format("2006-01-02 15:04"), inv.ItemCount(), inv.Total.StringFixed(2), inv.ID)
	}
}

func printInvoice(out io.Writer, inv *core.Invoice) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  INVOICE %s   %s\n", inv.InvoiceNumber, inv.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, it := range inv.Items {
		fmt.Fprintf(out, "  %-36s %4d x %9s %12s\n", it.ProductName, it.Quantity, it.UnitPrice.StringFixed(2), it.Subtotal.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 70))
	fmt.Fprintf(out, "  %-56s %11s\n", "TOTAL", inv.Total.StringFixed(2))
}

func printReport(out io.Writer, r *core.SalesReport) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  SALES REPORT %04d-%02d\n", r.Year, r.Month)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  Total sales : %s\n", r.TotalSales.StringFixed(2))
	fmt.Fprintf(out, "  Invoices    : %d\n", r.InvoiceCount)
	fmt.Fprintf(out, "  Items sold  : %d\n", r.ItemsSold)
	if len(r.TopProducts) > 0 {
		fmt.Fprintln(out, strings.Repeat("-", 62))
		fmt.Fprintf(out, "  %-36s %8s %14s\n", "TOP PRODUCTS", "QTY", "REVENUE")
		for _, p := range r.TopProducts {
			fmt.Fprintf(out, "  %-36s %8d %14s\n", p.ProductName, p.QuantitySold, p.Revenue.StringFixed(2))
		}
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printImportProposal(out io.Writer, p *app.ImportProposal) {
	if len(p.Lines) == 0 {
		fmt.Fprintln(out, "No product lines found.")
		return
	}
	fmt.Fprintf(out, "  %-32s %8s %10s %-6s %s\n", "NAME", "QTY", "PRICE", "UNIT", "CATEGORY")
	for _, l := range p.Lines {
		fmt.Fprintf(out, "  %-32s %8d %10s %-6s %s\n", l.Name, l.Quantity, l.UnitPrice.StringFixed(2), l.Unit, l.Category)
	}
}
