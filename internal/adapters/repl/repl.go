package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"
)

var errExit = errors.New("exit")

// terminal is one interactive point-of-sale session.
type terminal struct {
	svc     app.ApplicationService
	session app.UserSession
	reg     *pos.Register
	reader  *bufio.Reader
	out     io.Writer
	last    []core.Product // results of the last search, addressed by number
}

// Run starts the interactive point-of-sale loop for an authenticated session.
// Slash commands are dispatched deterministically; any other input searches the catalog.
func Run(ctx context.Context, svc app.ApplicationService, session app.UserSession, reader *bufio.Reader, out io.Writer) error {
	reg, err := svc.OpenRegister(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to open register: %w", err)
	}
	t := &terminal{svc: svc, session: session, reg: reg, reader: reader, out: out}

	fmt.Fprintln(out, "Point of Sale")
	fmt.Fprintf(out, "User: %s  |  %d products available\n", session.Username, len(reg.Catalog().Products()))
	fmt.Fprintln(out, "Type a product name to search, or /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, readErr := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if readErr != nil {
				break
			}
			continue
		}

		var err error
		if strings.HasPrefix(input, "/") {
			err = t.dispatch(ctx, input)
		} else {
			t.search(input, pos.AutocompleteLimit)
		}
		if errors.Is(err, errExit) {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %s\n", describe(err))
		}
		if readErr != nil {
			break
		}
	}

	if err := t.reg.Close(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Goodbye!")
	return nil
}

func (t *terminal) dispatch(ctx context.Context, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "help", "h":
		printHelp(t.out)

	case "search", "s":
		t.search(strings.Join(args, " "), pos.AutocompleteLimit)

	case "browse", "b":
		t.search("", pos.GridLimit)

	case "add", "a":
		if len(args) < 1 {
			fmt.Fprintln(t.out, "Usage: /add <result-number|product-id> [quantity]")
			return nil
		}
		id, err := t.resolveResult(args[0])
		if err != nil {
			return err
		}
		if err := t.reg.Add(id); err != nil {
			return err
		}
		if len(args) >= 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			if err := t.reg.SetQuantity(id, n); err != nil {
				return err
			}
		}
		printCart(t.out, t.reg.Cart())

	case "qty", "q":
		if len(args) < 2 {
			fmt.Fprintln(t.out, "Usage: /qty <line-number> <quantity>")
			return nil
		}
		id, err := t.resolveLine(args[0])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		if err := t.reg.SetQuantity(id, n); err != nil {
			return err
		}
		printCart(t.out, t.reg.Cart())

	case "rm", "remove":
		if len(args) < 1 {
			fmt.Fprintln(t.out, "Usage: /rm <line-number>")
			return nil
		}
		id, err := t.resolveLine(args[0])
		if err != nil {
			return err
		}
		if err := t.reg.Remove(id); err != nil {
			return err
		}
		printCart(t.out, t.reg.Cart())

	case "cart", "c":
		printCart(t.out, t.reg.Cart())

	case "submit", "pay":
		return t.submit(ctx)

	case "clear":
		if err := t.reg.Open(ctx); err != nil {
			return err
		}
		fmt.Fprintln(t.out, "Cart cleared.")

	case "refresh":
		if err := t.reg.Catalog().Load(ctx, t.session.UserID); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "Catalog reloaded: %d products available.\n", len(t.reg.Catalog().Products()))

	case "products":
		result, err := t.svc.ListProducts(ctx, t.session.UserID)
		if err != nil {
			return err
		}
		printProducts(t.out, result)

	case "movements":
		limit := 20
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				limit = n
			}
		}
		result, err := t.svc.ListMovements(ctx, t.session.UserID, limit)
		if err != nil {
			return err
		}
		printMovements(t.out, result)

	case "invoices":
		result, err := t.svc.ListInvoices(ctx, t.session.UserID, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		printInvoices(t.out, result)

	case "invoice":
		if len(args) < 1 {
			fmt.Fprintln(t.out, "Usage: /invoice <invoice-id>")
			return nil
		}
		inv, err := t.svc.GetInvoice(ctx, t.session.UserID, args[0])
		if err != nil {
			return err
		}
		printInvoice(t.out, inv)

	case "report":
		now := time.Now()
		year, month := now.Year(), int(now.Month())
		if len(args) >= 2 {
			y, yerr := strconv.Atoi(args[0])
			m, merr := strconv.Atoi(args[1])
			if yerr != nil || merr != nil {
				fmt.Fprintln(t.out, "Usage: /report [year month]")
				return nil
			}
			year, month = y, m
		}
		report, err := t.svc.MonthlySales(ctx, t.session.UserID, year, month)
		if err != nil {
			return err
		}
		printReport(t.out, report)

	case "import":
		if len(args) < 1 {
			fmt.Fprintln(t.out, "Usage: /import <image-or-xlsx-path>")
			return nil
		}
		return t.importFile(ctx, strings.Join(args, " "))

	case "quit", "exit":
		if t.reg.Busy() {
			return pos.ErrSubmitInProgress
		}
		return errExit

	default:
		fmt.Fprintf(t.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

func (t *terminal) search(term string, k int) {
	t.last = t.reg.Search(term, k)
	printSearch(t.out, term, t.last)
}

// resolveResult maps a search result number to its product id. Anything that
// is not a listed number is taken as a product id.
func (t *terminal) resolveResult(arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	if n < 1 || n > len(t.last) {
		return "", fmt.Errorf("no search result #%d", n)
	}
	return t.last[n-1].ID, nil
}

func (t *terminal) resolveLine(arg string) (string, error) {
	cart := t.reg.Cart()
	if cart == nil {
		return "", pos.ErrCartClosed
	}
	lines := cart.Lines()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(lines) {
		return "", fmt.Errorf("no cart line #%s", arg)
	}
	return lines[n-1].Product.ID, nil
}

// describe renders errors the way a cashier needs to read them.
func describe(err error) string {
	var (
		cve       *core.CommitValidationError
		transport *pos.CommitTransportError
		load      *pos.CatalogLoadError
	)
	switch {
	case errors.As(err, &cve):
		return "invoice rejected: " + cve.Error() + ". Adjust the cart and submit again."
	case errors.As(err, &transport):
		return "invoice not saved (" + transport.Err.Error() + "). The cart was kept; submit again."
	case errors.As(err, &load):
		return "catalog unavailable (" + load.Err.Error() + "). Try /refresh."
	}
	return err.Error()
}
