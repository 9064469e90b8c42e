package repl

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"inventory-invoicing/internal/app"
)

func (t *terminal) confirm(prompt string) bool {
	fmt.Fprintf(t.out, "%s (y/n): ", prompt)
	choice, _ := t.reader.ReadString('\n')
	choice = strings.TrimSpace(strings.ToLower(choice))
	return choice == "y" || choice == "yes"
}

// submit shows the cart, asks for confirmation and commits it.
func (t *terminal) submit(ctx context.Context) error {
	cart := t.reg.Cart()
	printCart(t.out, cart)
	if cart == nil || len(cart.Lines()) == 0 {
		return nil
	}
	if !t.confirm("\nCharge this sale?") {
		fmt.Fprintln(t.out, "Sale not submitted.")
		return nil
	}

	receipt, err := t.reg.Submit(ctx)
	if err != nil {
		return err
	}
	printReceipt(t.out, receipt)
	t.last = nil
	return nil
}

// importFile reads stock lines from an invoice photo or an .xlsx sheet,
// shows them, and commits them after confirmation.
func (t *terminal) importFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var proposal *app.ImportProposal
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		proposal, err = t.svc.ParseImportSpreadsheet(ctx, bytes.NewReader(data), int64(len(data)))
	} else {
		fmt.Fprintln(t.out, "[AI] Reading invoice...")
		proposal, err = t.svc.ExtractImport(ctx, app.ImageUpload{
			MimeType: http.DetectContentType(data),
			Data:     data,
		})
	}
	if err != nil {
		return err
	}

	printImportProposal(t.out, proposal)
	if len(proposal.Lines) == 0 {
		return nil
	}
	if !t.confirm("\nAdd these products to stock?") {
		fmt.Fprintln(t.out, "Import cancelled.")
		return nil
	}

	summary, err := t.svc.CommitImport(ctx, t.session.UserID, proposal.Lines)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Import committed: %d created, %d updated.\n", summary.Created, summary.Updated)

	if err := t.reg.Catalog().Load(ctx, t.session.UserID); err != nil {
		fmt.Fprintf(t.out, "Warning: %s\n", describe(err))
	}
	return nil
}
