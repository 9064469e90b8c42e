package web

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"inventory-invoicing/internal/ai"
	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/core"
)

const maxSpreadsheetSize = 10 << 20

// uploadedFile parses a single-file multipart body under field "file".
// It writes the error response and returns nil on failure.
func uploadedFile(w http.ResponseWriter, r *http.Request, maxSize int64) (multipart.File, *multipart.FileHeader) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))
	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, "request too large or malformed", "BAD_REQUEST", http.StatusBadRequest)
		return nil, nil
	}
	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		writeError(w, r, "exactly one file is required", "BAD_REQUEST", http.StatusBadRequest)
		return nil, nil
	}
	fh := files[0]
	if fh.Size > maxSize {
		writeError(w, r, fmt.Sprintf("file exceeds maximum size of %d MB", maxSize>>20),
			"FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		writeError(w, r, "failed to open uploaded file", "INTERNAL_ERROR", http.StatusInternalServerError)
		return nil, nil
	}
	return f, fh
}

// importExtract handles POST /api/import/extract: reads product lines from an
// invoice photo. The lines are returned for review; nothing is stored.
func (h *Handler) importExtract(w http.ResponseWriter, r *http.Request) {
	f, _ := uploadedFile(w, r, ai.MaxImageSize)
	if f == nil {
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, r, "failed to read uploaded file", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	mimeType := strings.ToLower(http.DetectContentType(data))
	if !ai.AllowedMIMETypes[mimeType] {
		writeError(w, r, fmt.Sprintf("file type %q not allowed; accepted: jpeg, png, webp", mimeType),
			"UNSUPPORTED_TYPE", http.StatusUnsupportedMediaType)
		return
	}

	proposal, err := h.svc.ExtractImport(r.Context(), app.ImageUpload{MimeType: mimeType, Data: data})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, proposal)
}

// importSpreadsheet handles POST /api/import/spreadsheet: reads product lines from an .xlsx file.
func (h *Handler) importSpreadsheet(w http.ResponseWriter, r *http.Request) {
	f, fh := uploadedFile(w, r, maxSpreadsheetSize)
	if f == nil {
		return
	}
	defer f.Close()

	proposal, err := h.svc.ParseImportSpreadsheet(r.Context(), f, fh.Size)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, proposal)
}

// importCommit handles POST /api/import/commit with the reviewed lines.
func (h *Handler) importCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []core.ImportLine `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := h.svc.CommitImport(r.Context(), userID(r), req.Lines)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.refreshCatalog(r)
	writeJSON(w, summary)
}
