package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-invoicing/internal/ai"
	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
)

type appService struct {
	catalog   core.CatalogService
	invoices  core.InvoiceService
	users     core.UserService
	reports   core.ReportingService
	extractor ai.Extractor
	locale    language.Tag
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an appService.
type Option func(*appService)

// WithClock replaces the time source used for expiration status.
func WithClock(now func() time.Time) Option {
	return func(s *appService) { s.now = now }
}

// NewAppService constructs an appService that satisfies ApplicationService.
// extractor may be nil, in which case ExtractImport reports ErrExtractionUnavailable.
func NewAppService(
	catalog core.CatalogService,
	invoices core.InvoiceService,
	users core.UserService,
	reports core.ReportingService,
	extractor ai.Extractor,
	locale language.Tag,
	logger *zap.Logger,
	opts ...Option,
) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &appService{
		catalog:   catalog,
		invoices:  invoices,
		users:     users,
		reports:   reports,
		extractor: extractor,
		locale:    locale,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Users ─────────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &UserSession{UserID: user.ID, Username: user.Username}, nil
}

func (s *appService) GetUser(ctx context.Context, userID string) (*UserResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResult(user), nil
}

func (s *appService) RegisterUser(ctx context.Context, req RegisterUserRequest) (*UserResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	user, err := s.users.CreateUser(ctx, username, strings.TrimSpace(req.Email), string(hash))
	if err != nil {
		return nil, err
	}
	return toUserResult(user), nil
}

func toUserResult(u *core.User) *UserResult {
	return &UserResult{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) view(p core.Product) ProductView {
	v := ProductView{Product: p}
	status, days := p.ExpirationStatus(s.now())
	if status != core.ExpirationNone {
		v.ExpirationStatus = status
		v.DaysToExpiry = &days
	}
	return v
}

func (s *appService) ListProducts(ctx context.Context, userID string) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, len(products))
	for i, p := range products {
		views[i] = s.view(p)
	}
	return &ProductListResult{Products: views}, nil
}

func (s *appService) GetProduct(ctx context.Context, userID, productID string) (*ProductView, error) {
	p, err := s.catalog.GetProduct(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	v := s.view(*p)
	return &v, nil
}

func (s *appService) CreateProduct(ctx context.Context, userID string, req ProductRequest) (*ProductView, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.CreateProduct(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	v := s.view(*p)
	return &v, nil
}

func (s *appService) UpdateProduct(ctx context.Context, userID, productID string, req ProductRequest) (*ProductView, error) {
	in, err := req.toInput()
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.UpdateProduct(ctx, userID, productID, in)
	if err != nil {
		return nil, err
	}
	v := s.view(*p)
	return &v, nil
}

func (s *appService) ArchiveProduct(ctx context.Context, userID, productID string) error {
	return s.catalog.ArchiveProduct(ctx, userID, productID)
}

func (s *appService) ListMovements(ctx context.Context, userID string, limit int) (*MovementListResult, error) {
	movements, err := s.catalog.ListMovements(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: movements}, nil
}

// ── Sales ─────────────────────────────────────────────────────────────────────

func (s *appService) OpenRegister(ctx context.Context, session UserSession) (*pos.Register, error) {
	snapshot := pos.NewCatalogSnapshot(s.catalog, pos.WithLocale(s.locale))
	reg := pos.NewRegister(session.POS(), snapshot, s.invoices, s.logger)
	if err := reg.Open(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *appService) ListInvoices(ctx context.Context, userID string, from, to time.Time) (*InvoiceListResult, error) {
	invoices, err := s.invoices.ListInvoices(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	return &InvoiceListResult{Invoices: invoices}, nil
}

func (s *appService) GetInvoice(ctx context.Context, userID, invoiceID string) (*core.Invoice, error) {
	return s.invoices.GetInvoice(ctx, userID, invoiceID)
}

func (s *appService) MonthlySales(ctx context.Context, userID string, year, month int) (*core.SalesReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12, got %d", ErrInvalidRequest, month)
	}
	return s.reports.MonthlySales(ctx, userID, year, month)
}

// ── Import ────────────────────────────────────────────────────────────────────

func (s *appService) ExtractImport(ctx context.Context, upload ImageUpload) (*ImportProposal, error) {
	if s.extractor == nil {
		return nil, ErrExtractionUnavailable
	}
	if !ai.AllowedMIMETypes[upload.MimeType] {
		return nil, fmt.Errorf("%w: unsupported image type %q", ErrInvalidRequest, upload.MimeType)
	}
	lines, err := s.extractor.ExtractInvoiceLines(ctx, upload.Data, upload.MimeType)
	if err != nil {
		return nil, fmt.Errorf("invoice extraction failed: %w", err)
	}
	s.logger.Info("invoice lines extracted", zap.Int("lines", len(lines)))
	return &ImportProposal{Lines: lines}, nil
}

func (s *appService) CommitImport(ctx context.Context, userID string, lines []core.ImportLine) (*core.ImportSummary, error) {
	lines = core.NormalizeImportLines(lines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no importable lines", ErrInvalidRequest)
	}
	summary, err := s.catalog.ImportProducts(ctx, userID, lines)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock import committed",
		zap.String("user_id", userID),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
	)
	return summary, nil
}
