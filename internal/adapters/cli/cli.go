package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"inventory-invoicing/internal/app"
)

// Usage lists the one-shot commands.
const Usage = `Available: products, movements, invoices, invoice <id>, report [year month],
           export <file.xlsx>, import <image|file.xlsx> [--commit]`

// Run executes a one-shot CLI command for an authenticated session and writes JSON
// (or a spreadsheet for export) to out. args[0] is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, session app.UserSession, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", Usage)
	}
	userID := session.UserID

	switch args[0] {
	case "products", "prod":
		result, err := svc.ListProducts(ctx, userID)
		if err != nil {
			return err
		}
		return writeJSON(out, result)

	case "movements", "mov":
		limit := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}
			limit = n
		}
		result, err := svc.ListMovements(ctx, userID, limit)
		if err != nil {
			return err
		}
		return writeJSON(out, result)

	case "invoices", "inv":
		result, err := svc.ListInvoices(ctx, userID, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		return writeJSON(out, result)

	case "invoice":
		if len(args) < 2 {
			return fmt.Errorf("usage: invoice <id>")
		}
		inv, err := svc.GetInvoice(ctx, userID, args[1])
		if err != nil {
			return err
		}
		return writeJSON(out, inv)

	case "report":
		now := time.Now()
		year, month := now.Year(), int(now.Month())
		if len(args) >= 3 {
			y, yerr := strconv.Atoi(args[1])
			m, merr := strconv.Atoi(args[2])
			if yerr != nil || merr != nil {
				return fmt.Errorf("usage: report [year month]")
			}
			year, month = y, m
		}
		report, err := svc.MonthlySales(ctx, userID, year, month)
		if err != nil {
			return err
		}
		return writeJSON(out, report)

	case "export":
		if len(args) < 2 {
			return fmt.Errorf("usage: export <file.xlsx>")
		}
		var buf bytes.Buffer
		if err := svc.ExportProductsXLSX(ctx, userID, &buf); err != nil {
			return err
		}
		if err := os.WriteFile(args[1], buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[1], err)
		}
		fmt.Fprintf(out, "Exported products to %s\n", args[1])
		return nil

	case "import":
		if len(args) < 2 {
			return fmt.Errorf("usage: import <image|file.xlsx> [--commit]")
		}
		return runImport(ctx, svc, userID, args[1], len(args) > 2 && args[2] == "--commit", out)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], Usage)
	}
}

// runImport prints the proposed lines; with commit it also stores them.
func runImport(ctx context.Context, svc app.ApplicationService, userID, path string, commit bool, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var proposal *app.ImportProposal
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		proposal, err = svc.ParseImportSpreadsheet(ctx, bytes.NewReader(data), int64(len(data)))
	} else {
		proposal, err = svc.ExtractImport(ctx, app.ImageUpload{MimeType: http.DetectContentType(data), Data: data})
	}
	if err != nil {
		return err
	}
	if !commit {
		return writeJSON(out, proposal)
	}

	summary, err := svc.CommitImport(ctx, userID, proposal.Lines)
	if err != nil {
		return err
	}
	return writeJSON(out, summary)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
