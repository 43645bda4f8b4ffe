package arasaka

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSpreadsheetID = "sheet-1"
	testWorksheet     = "Ledger"
	testWorksheetID   = 7
)

// fakeSheets holds a single worksheet as a grid of formatted cell values,
// and serves the parts of the Sheets v4 API the ledger uses.
type fakeSheets struct {
	mu    sync.Mutex
	grid  [][]string
	calls []string
}

func newFakeSheets(t testing.TB, rows ...[]string) (*fakeSheets, *httptest.Server) {
	t.Helper()
	f := &fakeSheets{grid: rows}
	ts := httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(ts.Close)
	return f, ts
}

// a1Cell parses "B" or "B2" into a zero-based column and 1-based row
// (0 when no row is given)
func a1Cell(s string) (int, int) {
	col := int(s[0] - 'A')
	row, _ := strconv.Atoi(s[1:])
	return col, row
}

func a1Range(rng string) (c1, r1, c2, r2 int) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	start, end, ok := strings.Cut(rng, ":")
	if !ok {
		end = start
	}
	c1, r1 = a1Cell(start)
	c2, r2 = a1Cell(end)
	return c1, r1, c2, r2
}

func (f *fakeSheets) set(row, col int, value string) {
	for len(f.grid) < row {
		f.grid = append(f.grid, nil)
	}
	cells := f.grid[row-1]
	for len(cells) <= col {
		cells = append(cells, "")
	}
	cells[col] = value
	f.grid[row-1] = cells
}

func (f *fakeSheets) cell(row, col int) string {
	if row-1 >= len(f.grid) || col >= len(f.grid[row-1]) {
		return ""
	}
	return f.grid[row-1][col]
}

// renderCell returns numbers as JSON numbers when unformatted, and
// otherwise the way a "#,##0.##" number format displays them
func renderCell(s string, unformatted bool) any {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if unformatted {
		return v
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteString("." + frac)
	}
	return b.String()
}

func (f *fakeSheets) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/"+testSpreadsheetID)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	rng, isValues := strings.CutPrefix(rest, "/values/")
	switch {
	case isValues && r.Method == http.MethodGet:
		f.calls = append(f.calls, "get "+rng)
		c1, r1, c2, r2 := a1Range(rng)
		if r1 == 0 {
			r1, r2 = 1, len(f.grid)
		}
		unformatted := r.URL.Query().Get("valueRenderOption") == sheetsValueRenderOption
		values := [][]any{}
		for row := r1; row <= r2; row++ {
			var out []any
			for col := c1; col <= c2; col++ {
				out = append(out, renderCell(f.cell(row, col), unformatted))
			}
			for len(out) > 0 && out[len(out)-1] == "" {
				out = out[:len(out)-1]
			}
			values = append(values, out)
		}
		for len(values) > 0 && len(values[len(values)-1]) == 0 {
			values = values[:len(values)-1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
	case isValues && r.Method == http.MethodPut:
		f.calls = append(f.calls, "update "+rng)
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c1, r1, _, _ := a1Range(rng)
		for i, row := range body.Values {
			for j, v := range row {
				f.set(r1+i, c1+j, fmt.Sprint(v))
			}
		}
		_, _ = fmt.Fprint(w, "{}")
	case isValues && r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
		f.calls = append(f.calls, "append")
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, row := range body.Values {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprint(v)
			}
			f.grid = append(f.grid, cells)
		}
		_, _ = fmt.Fprint(w, "{}")
	case rest == ":batchUpdate" && r.Method == http.MethodPost:
		f.calls = append(f.calls, "batchUpdate")
		var body struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						SheetID    int64 `json:"sheetId"`
						StartIndex int   `json:"startIndex"`
						EndIndex   int   `json:"endIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, req := range body.Requests {
			d := req.DeleteDimension.Range
			if d.SheetID != testWorksheetID {
				http.Error(w, "unknown sheet", http.StatusBadRequest)
				return
			}
			f.grid = append(f.grid[:d.StartIndex], f.grid[d.EndIndex:]...)
		}
		_, _ = fmt.Fprintf(w, `{"spreadsheetId":%q}`, testSpreadsheetID)
	case rest == "" && r.Method == http.MethodGet:
		f.calls = append(f.calls, "spreadsheet")
		_, _ = fmt.Fprintf(
			w,
			`{"sheets":[{"properties":{"sheetId":1,"title":"Other"}},{"properties":{"sheetId":%d,"title":%q}}]}`,
			testWorksheetID,
			testWorksheet,
		)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// ledgerCells builds a sheet row with values in the ledger's columns
func ledgerCells(username, rank, division, weekly, total, discord string) []string {
	cells := make([]string, columnIndex(sheetsLastColumn)+1)
	cells[columnIndex(columnUsername)] = username
	cells[columnIndex(columnRank)] = rank
	cells[columnIndex(columnDivision)] = division
	cells[columnIndex(columnWeeklyXP)] = weekly
	cells[columnIndex(columnTotalXP)] = total
	cells[columnIndex(columnDiscordID)] = discord
	return cells
}

func newTestSheetsLedger(t testing.TB) (*fakeSheets, *SheetsLedger) {
	t.Helper()
	fake, ts := newFakeSheets(
		t,
		ledgerCells("Username", "Rank", "Division", "Weekly", "Total", "Discord"),
		ledgerCells("alice", RankInitiate, "", "2", "10", ":1001"),
		ledgerCells("bob", RankOperative, "Netwatch", "IN", "40.5", ""),
	)
	ledger, err := NewSheetsLedger(
		context.Background(),
		afero.NewMemMapFs(),
		&SheetsConfig{
			SpreadsheetID: testSpreadsheetID,
			Worksheet:     testWorksheet,
			Endpoint:      ts.URL + "/",
		},
		ts.Client(),
		testLogger(),
	)
	require.NoError(t, err)
	return fake, ledger
}

func TestSheetsLedger(t *testing.T) {
	ctx := context.Background()
	fake, ledger := newTestSheetsLedger(t)

	usernames, err := ledger.Usernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, usernames)

	row, err := ledger.Find(ctx, " BOB ")
	require.NoError(t, err)
	assert.Equal(
		t,
		LedgerRow{
			Row:      3,
			Username: "bob",
			Rank:     RankOperative,
			Division: "Netwatch",
			Weekly:   StatusWeekly(StatusInactivityNotice),
			Total:    40.5,
		},
		row,
	)

	_, err = ledger.Find(ctx, "nobody")
	assert.ErrorIs(t, err, ErrLedgerRowNotFound)

	_, err = ledger.Row(ctx, 10)
	assert.ErrorIs(t, err, ErrLedgerRowNotFound)

	t.Run(
		"writes", func(t *testing.T) {
			require.NoError(t, ledger.WriteXP(ctx, 2, NumericWeekly(7), 15))
			require.NoError(t, ledger.WriteRank(ctx, 2, RankOperative))
			require.NoError(t, ledger.WriteWeekly(ctx, 3, StatusWeekly(StatusExempt)))

			alice, e := ledger.Find(ctx, "alice")
			require.NoError(t, e)
			assert.Equal(t, NumericWeekly(7), alice.Weekly)
			assert.Equal(t, float64(15), alice.Total)
			assert.Equal(t, RankOperative, alice.Rank)
			assert.Equal(t, "N/A", alice.Division)
			id, ok := alice.DiscordID()
			assert.True(t, ok)
			assert.Equal(t, "1001", id)

			assert.Equal(t, "EX", fake.cell(3, columnIndex(columnWeeklyXP)))
			assert.Contains(t, fake.calls, "update 'Ledger'!H2:I2")
		},
	)

	t.Run(
		"append and delete", func(t *testing.T) {
			require.NoError(
				t,
				ledger.Append(
					ctx,
					LedgerRow{Username: "carol", Rank: RankInitiate, Division: "N/A", DiscordRef: ":3003"},
				),
			)
			carol, e := ledger.Find(ctx, "carol")
			require.NoError(t, e)
			assert.Equal(t, 4, carol.Row)
			assert.Equal(t, RankInitiate, carol.Rank)

			require.NoError(t, ledger.Delete(ctx, 2))
			require.NoError(t, ledger.Delete(ctx, 2))
			usernames, e := ledger.Usernames(ctx)
			require.NoError(t, e)
			assert.Equal(t, []string{"carol"}, usernames)

			// the worksheet ID is looked up once
			lookups := 0
			for _, c := range fake.calls {
				if c == "spreadsheet" {
					lookups++
				}
			}
			assert.Equal(t, 1, lookups)
		},
	)
}

func TestSheetsLedger_NumberFormat(t *testing.T) {
	ctx := context.Background()
	fake, ledger := newTestSheetsLedger(t)
	fake.set(2, columnIndex(columnWeeklyXP), "1250")
	fake.set(2, columnIndex(columnTotalXP), "12345.5")

	assert.Equal(t, "12,345.5", renderCell("12345.5", false))

	alice, err := ledger.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, NumericWeekly(1250), alice.Weekly)
	assert.Equal(t, 12345.5, alice.Total)
}

func TestNewSheetsLedger_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := NewSheetsLedger(ctx, afero.NewMemMapFs(), &SheetsConfig{}, nil, testLogger())
	assert.ErrorContains(t, err, "spreadsheet ID not set")

	_, err = NewSheetsLedger(
		ctx,
		afero.NewMemMapFs(),
		&SheetsConfig{SpreadsheetID: "x", CredentialsFile: "/creds.json"},
		nil,
		testLogger(),
	)
	assert.ErrorContains(t, err, "error reading sheets credentials")
}

func TestParseLedgerRow(t *testing.T) {
	row, err := parseLedgerRow(5, []any{"", "  Goro ", "", "", RankSergeant})
	require.NoError(t, err)
	assert.Equal(t, "Goro", row.Username)
	assert.Equal(t, RankSergeant, row.Rank)
	assert.Equal(t, "N/A", row.Division)
	assert.Equal(t, NumericWeekly(0), row.Weekly)
	assert.Zero(t, row.Total)

	_, err = parseLedgerRow(6, ledgerCellsAny("Goro", RankSergeant, "", "lots", "1", ""))
	assert.ErrorContains(t, err, "row 6")

	assert.Equal(t, 0, columnIndex("A"))
	assert.Equal(t, 16, columnIndex(columnDiscordID))
}

func ledgerCellsAny(username, rank, division, weekly, total, discord string) []any {
	cells := ledgerCells(username, rank, division, weekly, total, discord)
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
