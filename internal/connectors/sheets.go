package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/pathutil"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// SheetInfo describes one tab of a spreadsheet.
type SheetInfo struct {
	Title       string `json:"title"`
	SheetID     int64  `json:"sheetId"`
	RowCount    int64  `json:"rowCount"`
	ColumnCount int64  `json:"columnCount"`
}

// SpreadsheetMetadata is the title and tab list of a spreadsheet.
type SpreadsheetMetadata struct {
	Title  string      `json:"title"`
	Sheets []SheetInfo `json:"sheets"`
}

// UpdateStats is the outcome of a values update.
type UpdateStats struct {
	UpdatedCells int64
	UpdatedRows  int64
	UpdatedRange string
}

// SheetsService is the subset of the Sheets API the adapter needs.
type SheetsService interface {
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) (*UpdateStats, error)
	GetSpreadsheet(ctx context.Context, spreadsheetID string) (*SpreadsheetMetadata, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
}

// ServiceFactory builds a SheetsService from service-account credentials.
type ServiceFactory func(ctx context.Context, credentialsJSON []byte, readOnly bool) (SheetsService, error)

// SheetsAdapter reads and writes Google Sheets ranges.
type SheetsAdapter struct {
	credentialsDir string
	newService     ServiceFactory
	limiter        *rate.Limiter
	now            func() time.Time
}

var _ Adapter = (*SheetsAdapter)(nil)

// SheetsOption configures a SheetsAdapter.
type SheetsOption func(*SheetsAdapter)

// WithServiceFactory replaces the Google API client factory.
func WithServiceFactory(f ServiceFactory) SheetsOption {
	return func(a *SheetsAdapter) { a.newService = f }
}

// WithCredentialsDir sets the directory relative credential paths resolve against.
func WithCredentialsDir(dir string) SheetsOption {
	return func(a *SheetsAdapter) { a.credentialsDir = dir }
}

// WithRateLimit caps API calls per minute.
func WithRateLimit(perMinute int) SheetsOption {
	return func(a *SheetsAdapter) {
		if perMinute <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := perMinute
		if burst > 10 {
			burst = 10
		}
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// WithClock overrides the time source used for default sheet names.
func WithClock(now func() time.Time) SheetsOption {
	return func(a *SheetsAdapter) { a.now = now }
}

// NewSheetsAdapter creates a Sheets adapter backed by the Google API client.
func NewSheetsAdapter(opts ...SheetsOption) *SheetsAdapter {
	a := &SheetsAdapter{
		credentialsDir: ".",
		newService:     GoogleServiceFactory,
		now:            time.Now,
	}
	WithRateLimit(60)(a)
	for _, o := range opts {
		o(a)
	}
	return a
}

// Kind implements Adapter.
func (a *SheetsAdapter) Kind() Kind { return KindGoogleSheets }

// Live implements Adapter.
func (a *SheetsAdapter) Live() bool { return true }

// Read fetches a range. The first row is the header; every later row becomes
// a record with one key per header. Missing and empty cells become nil.
func (a *SheetsAdapter) Read(ctx context.Context, cfg SourceConfig) (*ReadResult, error) {
	const op = "sheets.read"
	svc, err := a.service(ctx, cfg.CredentialsPath, true)
	if err != nil {
		return nil, errhandling.Connector(op, "connecting to Google Sheets", err)
	}

	rng := cfg.Range
	if rng == "" {
		rng = quoteSheetName(cfg.SheetName)
	}
	if err := a.wait(ctx); err != nil {
		return nil, errhandling.Connector(op, "waiting for Sheets quota", err)
	}
	values, err := svc.GetValues(ctx, cfg.SpreadsheetID, rng)
	if err != nil {
		return nil, errhandling.Connector(op, fmt.Sprintf("fetching %s from spreadsheet %s", rng, cfg.SpreadsheetID), err)
	}

	rows := gridToRowSet(values)
	logger.Debug("sheet range read",
		slog.String("spreadsheet_id", cfg.SpreadsheetID),
		slog.String("range", rng),
		slog.Int("row_count", rows.Len()),
	)
	return &ReadResult{Rows: rows, Schema: append([]string(nil), rows.Columns...), RowCount: rows.Len()}, nil
}

// Write writes the row-set, header first, with RAW value input. Without an
// explicit range the target sub-sheet is created when it does not exist.
func (a *SheetsAdapter) Write(ctx context.Context, cfg DestinationConfig, rows *connector.RowSet) (*WriteResult, error) {
	const op = "sheets.write"
	svc, err := a.service(ctx, cfg.CredentialsPath, false)
	if err != nil {
		return nil, errhandling.Connector(op, "connecting to Google Sheets", err)
	}

	target := cfg.Range
	sheetName := sheetFromRange(target)
	if target == "" {
		sheetName = cfg.SheetName
		if sheetName == "" {
			sheetName = cfg.DefaultSheetName
		}
		if sheetName == "" {
			sheetName = "Pipeline_Output_" + a.now().UTC().Format("2006-01-02T15-04-05")
		}
		if err := a.ensureSheet(ctx, svc, cfg.SpreadsheetID, sheetName); err != nil {
			return nil, errhandling.Connector(op, fmt.Sprintf("preparing sheet %q", sheetName), err)
		}
		target = quoteSheetName(sheetName) + "!A1"
	}

	if err := a.wait(ctx); err != nil {
		return nil, errhandling.Connector(op, "waiting for Sheets quota", err)
	}
	stats, err := svc.UpdateValues(ctx, cfg.SpreadsheetID, target, rowSetToGrid(rows))
	if err != nil {
		return nil, errhandling.Connector(op, fmt.Sprintf("writing %s in spreadsheet %s", target, cfg.SpreadsheetID), err)
	}

	res := &WriteResult{
		RowsWritten: rows.Len(),
		SheetName:   sheetName,
		Location:    fmt.Sprintf("spreadsheet %s range %s", cfg.SpreadsheetID, target),
	}
	if stats != nil {
		res.UpdatedCells = int(stats.UpdatedCells)
	}
	return res, nil
}

// Metadata returns the spreadsheet title and its tabs.
func (a *SheetsAdapter) Metadata(ctx context.Context, spreadsheetID, credentialsPath string) (*SpreadsheetMetadata, error) {
	const op = "sheets.metadata"
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errhandling.Validation(op, "spreadsheetId is required", nil)
	}
	svc, err := a.service(ctx, credentialsPath, true)
	if err != nil {
		return nil, errhandling.Connector(op, "connecting to Google Sheets", err)
	}
	if err := a.wait(ctx); err != nil {
		return nil, errhandling.Connector(op, "waiting for Sheets quota", err)
	}
	meta, err := svc.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return nil, errhandling.Connector(op, "fetching spreadsheet metadata", err)
	}
	return meta, nil
}

func (a *SheetsAdapter) ensureSheet(ctx context.Context, svc SheetsService, spreadsheetID, title string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	meta, err := svc.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		logger.Warn("checking sheet existence failed, trying to create it",
			slog.String("spreadsheet_id", spreadsheetID),
			slog.String("sheet_name", title),
			slog.String("error", err.Error()),
		)
	} else {
		for _, s := range meta.Sheets {
			if s.Title == title {
				return nil
			}
		}
	}

	if err := a.wait(ctx); err != nil {
		return err
	}
	if err := svc.AddSheet(ctx, spreadsheetID, title); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return err
	}
	logger.Info("sheet created", slog.String("spreadsheet_id", spreadsheetID), slog.String("sheet_name", title))
	return nil
}

func (a *SheetsAdapter) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

func (a *SheetsAdapter) service(ctx context.Context, credentialsPath string, readOnly bool) (SheetsService, error) {
	creds, err := a.loadCredentials(credentialsPath)
	if err != nil {
		return nil, err
	}
	return a.newService(ctx, creds, readOnly)
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// loadCredentials reads and sanity-checks a service-account key file.
func (a *SheetsAdapter) loadCredentials(credentialsPath string) ([]byte, error) {
	if credentialsPath == "" {
		credentialsPath = DefaultCredentialsPath
	}
	path, err := pathutil.ResolveWithin(a.credentialsDir, credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("credentials file not found at %s: add a Google Cloud service account key", path)
		}
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}
	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("credentials file %s is not a service account key: client_email and private_key are required", path)
	}
	return data, nil
}

// gridToRowSet turns a header-first value grid into a row-set.
func gridToRowSet(values [][]any) *connector.RowSet {
	rows := &connector.RowSet{Columns: []string{}, Records: []connector.Record{}}
	if len(values) == 0 {
		return rows
	}
	for i, h := range values[0] {
		name := strings.TrimSpace(fmt.Sprint(h))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		rows.Columns = append(rows.Columns, name)
	}
	for _, row := range values[1:] {
		rec := make(connector.Record, len(rows.Columns))
		for i, col := range rows.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if s, ok := v.(string); ok && s == "" {
				v = nil
			}
			rec[col] = v
		}
		rows.Records = append(rows.Records, rec)
	}
	return rows
}

// rowSetToGrid renders the header row followed by one row per record.
func rowSetToGrid(rows *connector.RowSet) [][]any {
	if rows == nil {
		return [][]any{}
	}
	grid := make([][]any, 0, len(rows.Records)+1)
	header := make([]any, len(rows.Columns))
	for i, c := range rows.Columns {
		header[i] = c
	}
	grid = append(grid, header)
	for _, rec := range rows.Records {
		line := make([]any, len(rows.Columns))
		for i, c := range rows.Columns {
			v := rec[c]
			if v == nil {
				v = ""
			}
			line[i] = v
		}
		grid = append(grid, line)
	}
	return grid
}

func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// sheetFromRange extracts the sheet name from an A1 range like 'My Sheet'!A1.
func sheetFromRange(rng string) string {
	if rng == "" {
		return ""
	}
	name := rng
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		name = rng[:i]
	}
	if len(name) >= 2 && strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}

// GoogleServiceFactory builds a SheetsService on the Sheets v4 API.
func GoogleServiceFactory(ctx context.Context, credentialsJSON []byte, readOnly bool) (SheetsService, error) {
	scope := sheets.SpreadsheetsScope
	if readOnly {
		scope = sheets.SpreadsheetsReadonlyScope
	}
	svc, err := sheets.NewService(ctx, option.WithCredentialsJSON(credentialsJSON), option.WithScopes(scope))
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	return &googleSheets{svc: svc}, nil
}

type googleSheets struct {
	svc *sheets.Service
}

func (g *googleSheets) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleSheets) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) (*UpdateStats, error) {
	resp, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return &UpdateStats{UpdatedCells: resp.UpdatedCells, UpdatedRows: resp.UpdatedRows, UpdatedRange: resp.UpdatedRange}, nil
}

func (g *googleSheets) GetSpreadsheet(ctx context.Context, spreadsheetID string) (*SpreadsheetMetadata, error) {
	resp, err := g.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	meta := &SpreadsheetMetadata{}
	if resp.Properties != nil {
		meta.Title = resp.Properties.Title
	}
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		info := SheetInfo{Title: s.Properties.Title, SheetID: s.Properties.SheetId}
		if gp := s.Properties.GridProperties; gp != nil {
			info.RowCount = gp.RowCount
			info.ColumnCount = gp.ColumnCount
		}
		meta.Sheets = append(meta.Sheets, info)
	}
	return meta, nil
}

func (g *googleSheets) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	_, err := g.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}
