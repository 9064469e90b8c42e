package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"inventory-invoicing/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// MaxImageSize is the largest invoice photo accepted for extraction.
const MaxImageSize = 20 << 20

// AllowedMIMETypes is the whitelist of invoice image formats.
var AllowedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Extractor turns a photographed supplier invoice into import rows.
// The rows are a proposal only; nothing is written to the catalog.
type Extractor interface {
	ExtractInvoiceLines(ctx context.Context, image []byte, mimeType string) ([]core.ImportLine, error)
}

type Agent struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewAgent builds an extraction agent. An empty model selects GPT-4o.
func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	m := shared.ResponsesModel(shared.ChatModelGPT4o)
	if model != "" {
		m = shared.ResponsesModel(model)
	}
	return &Agent{client: &client, model: m}
}

const extractionPrompt = `You read photographed supplier invoices for a small shop.
List every product line on the invoice.
For each line give the product name as printed, the quantity bought, the unit price,
a short category if obvious, and the unit of measure if printed.
Ignore totals, taxes, discounts and payment information.
If the image is not an invoice, return an empty list.`

func (a *Agent) ExtractInvoiceLines(ctx context.Context, image []byte, mimeType string) ([]core.ImportLine, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	if len(image) > MaxImageSize {
		return nil, fmt.Errorf("image exceeds maximum size of %d MB", MaxImageSize>>20)
	}
	if !AllowedMIMETypes[mimeType] {
		return nil, fmt.Errorf("image type %q not supported; accepted: jpeg, png, webp", mimeType)
	}

	schemaMap, err := schemaFor(extraction{})
	if err != nil {
		return nil, err
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	content := responses.ResponseInputMessageContentListParam{
		{OfInputText: &responses.ResponseInputTextParam{Text: extractionPrompt}},
		{OfInputImage: &responses.ResponseInputImageParam{
			ImageURL: param.NewOpt(dataURL),
			Detail:   responses.ResponseInputImageDetailAuto,
		}},
	}

	params := responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "invoice_lines",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Product lines read from a supplier invoice"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	text := resp.OutputText()
	if text == "" {
		return nil, fmt.Errorf("empty response content")
	}
	return ParseExtraction(text)
}

func schemaFor(v any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
