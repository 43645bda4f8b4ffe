package arasaka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/afero"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetsValueInputOption = "USER_ENTERED"
	sheetsLastColumn       = "Q"

	// numbers come back as JSON numbers, without the sheet's number format
	sheetsValueRenderOption = "UNFORMATTED_VALUE"
)

// SheetsLedger is a Ledger backed by a Google Sheets worksheet.
type SheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	timeout       time.Duration
	logger        *slog.Logger

	sheetIDMu sync.Mutex
	sheetID   *int64
}

// NewSheetsLedger builds the sheets client. Credentials are read through
// fs so they can be swapped out in tests. When no credentials file is
// configured, httpClient (if set) is assumed to already be authorized.
func NewSheetsLedger(
	ctx context.Context,
	fs afero.Fs,
	config *SheetsConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) (*SheetsLedger, error) {
	if config.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet ID not set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}
	switch {
	case config.CredentialsFile != "":
		data, err := afero.ReadFile(fs, config.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("error reading sheets credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(data))
	case httpClient != nil:
		opts = append(opts, option.WithHTTPClient(httpClient))
	default:
		opts = append(opts, option.WithoutAuthentication())
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating sheets service: %w", err)
	}

	worksheet := config.Worksheet
	if worksheet == "" {
		worksheet = DefaultSheetsWorksheet
	}
	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = DefaultSheetsRequestTimeout
	}
	return &SheetsLedger{
		svc:           svc,
		spreadsheetID: config.SpreadsheetID,
		worksheet:     worksheet,
		timeout:       timeout,
		logger:        logger.With(loggerNameKey, "sheets"),
	}, nil
}

// a1 prefixes a range with the quoted worksheet name
func (s *SheetsLedger) a1(rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.worksheet, "'", "''"), rng)
}

func (s *SheetsLedger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *SheetsLedger) get(ctx context.Context, rng string) ([][]any, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.a1(rng)).
		ValueRenderOption(sheetsValueRenderOption).
		Context(ctx).Do()
	s.logger.DebugContext(
		ctx, "sheets get",
		"range", rng,
		"duration", time.Since(start),
		tint.Err(err),
	)
	if err != nil {
		return nil, fmt.Errorf("error reading range %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (s *SheetsLedger) update(ctx context.Context, rng string, values ...any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID,
		s.a1(rng),
		&sheets.ValueRange{Values: [][]any{values}},
	).ValueInputOption(sheetsValueInputOption).Context(ctx).Do()
	s.logger.InfoContext(
		ctx, "sheets update",
		"range", rng,
		"values", values,
		"duration", time.Since(start),
		tint.Err(err),
	)
	if err != nil {
		return fmt.Errorf("error writing range %s: %w", rng, err)
	}
	return nil
}

func (s *SheetsLedger) Usernames(ctx context.Context) ([]string, error) {
	values, err := s.get(ctx, fmt.Sprintf("%s:%s", columnUsername, columnUsername))
	if err != nil {
		return nil, err
	}
	if len(values) <= 1 {
		return nil, nil
	}
	usernames := make([]string, 0, len(values)-1)
	for _, row := range values[1:] {
		usernames = append(usernames, cellString(row, 0))
	}
	return usernames, nil
}

func (s *SheetsLedger) Find(ctx context.Context, username string) (LedgerRow, error) {
	usernames, err := s.Usernames(ctx)
	if err != nil {
		return LedgerRow{}, err
	}
	username = strings.TrimSpace(username)
	for i, u := range usernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			// +1 for the header, +1 for 1-indexed rows
			return s.Row(ctx, i+2)
		}
	}
	return LedgerRow{}, fmt.Errorf("%w: %s", ErrLedgerRowNotFound, username)
}

func (s *SheetsLedger) Row(ctx context.Context, row int) (LedgerRow, error) {
	values, err := s.get(ctx, fmt.Sprintf("A%d:%s%d", row, sheetsLastColumn, row))
	if err != nil {
		return LedgerRow{}, err
	}
	if len(values) == 0 {
		return LedgerRow{}, fmt.Errorf("%w: row %d", ErrLedgerRowNotFound, row)
	}
	return parseLedgerRow(row, values[0])
}

func (s *SheetsLedger) WriteXP(
	ctx context.Context,
	row int,
	weekly WeeklyXP,
	total float64,
) error {
	return s.update(
		ctx,
		fmt.Sprintf("%s%d:%s%d", columnWeeklyXP, row, columnTotalXP, row),
		weekly.CellValue(),
		total,
	)
}

func (s *SheetsLedger) WriteWeekly(ctx context.Context, row int, weekly WeeklyXP) error {
	return s.update(
		ctx,
		fmt.Sprintf("%s%d", columnWeeklyXP, row),
		weekly.CellValue(),
	)
}

func (s *SheetsLedger) WriteRank(ctx context.Context, row int, rank string) error {
	return s.update(ctx, fmt.Sprintf("%s%d", columnRank, row), rank)
}

func (s *SheetsLedger) Append(ctx context.Context, r LedgerRow) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	values := make([]any, columnIndex(sheetsLastColumn)+1)
	for i := range values {
		values[i] = ""
	}
	values[columnIndex(columnUsername)] = r.Username
	values[columnIndex(columnRank)] = r.Rank
	values[columnIndex(columnDivision)] = r.Division
	values[columnIndex(columnWeeklyXP)] = r.Weekly.CellValue()
	values[columnIndex(columnTotalXP)] = r.Total
	values[columnIndex(columnDiscordID)] = r.DiscordRef

	_, err := s.svc.Spreadsheets.Values.Append(
		s.spreadsheetID,
		s.a1(fmt.Sprintf("A:%s", sheetsLastColumn)),
		&sheets.ValueRange{Values: [][]any{values}},
	).ValueInputOption(sheetsValueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("error appending row for %s: %w", r.Username, err)
	}
	s.logger.InfoContext(ctx, "appended ledger row", "row", r)
	return nil
}

func (s *SheetsLedger) Delete(ctx context.Context, row int) error {
	sheetID, err := s.worksheetID(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.svc.Spreadsheets.BatchUpdate(
		s.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{
					DeleteDimension: &sheets.DeleteDimensionRequest{
						Range: &sheets.DimensionRange{
							SheetId:    sheetID,
							Dimension:  "ROWS",
							StartIndex: int64(row - 1),
							EndIndex:   int64(row),
						},
					},
				},
			},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("error deleting row %d: %w", row, err)
	}
	s.logger.InfoContext(ctx, "deleted ledger row", "row", row)
	return nil
}

// worksheetID looks up (and caches) the numeric ID of the worksheet,
// which row deletion needs.
func (s *SheetsLedger) worksheetID(ctx context.Context) (int64, error) {
	s.sheetIDMu.Lock()
	defer s.sheetIDMu.Unlock()
	if s.sheetID != nil {
		return *s.sheetID, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	spreadsheet, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields(googleapi.Field("sheets.properties")).
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("error getting spreadsheet: %w", err)
	}
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.worksheet {
			id := sh.Properties.SheetId
			s.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("worksheet %q not found", s.worksheet)
}

// columnIndex converts a single column letter to a zero-based index
func columnIndex(col string) int {
	return int(col[0] - 'A')
}

func cellString(row []any, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	if v, ok := row[idx].(float64); ok {
		return formatXP(v)
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func parseLedgerRow(rowNum int, row []any) (LedgerRow, error) {
	weekly, err := ParseWeeklyXP(cellString(row, columnIndex(columnWeeklyXP)))
	if err != nil {
		return LedgerRow{}, fmt.Errorf("row %d: %w", rowNum, err)
	}
	total, err := parseXPCell(cellString(row, columnIndex(columnTotalXP)))
	if err != nil {
		return LedgerRow{}, fmt.Errorf("row %d: %w", rowNum, err)
	}
	division := cellString(row, columnIndex(columnDivision))
	if division == "" {
		division = "N/A"
	}
	return LedgerRow{
		Row:        rowNum,
		Username:   cellString(row, columnIndex(columnUsername)),
		Rank:       cellString(row, columnIndex(columnRank)),
		Division:   division,
		Weekly:     weekly,
		Total:      total,
		DiscordRef: cellString(row, columnIndex(columnDiscordID)),
	}, nil
}
