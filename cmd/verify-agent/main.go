// verify-agent sends one invoice photo to the extraction model and prints the
// lines it proposes, without touching any catalog.
//
// Usage: go run ./cmd/verify-agent <image.jpg|png|webp>
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"inventory-invoicing/internal/ai"
	"inventory-invoicing/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: verify-agent <image>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.OpenAIKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("read image: %v", err)
	}
	mimeType := http.DetectContentType(data)

	agent := ai.NewAgent(cfg.OpenAIKey, cfg.OpenAIModel)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("EXTRACTING: %s (%s, %d bytes)\n", os.Args[1], mimeType, len(data))
	lines, err := agent.ExtractInvoiceLines(ctx, data, mimeType)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\n--- %d LINE(S) ---\n", len(lines))
	for _, l := range lines {
		fmt.Printf("- %-30s qty=%-5d price=%-10s category=%q unit=%q\n",
			l.Name, l.Quantity, l.UnitPrice.StringFixed(2), l.Category, l.Unit)
	}
}
