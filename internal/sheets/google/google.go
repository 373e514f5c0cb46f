package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"finbot/internal/core"
	ports "finbot/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures a Client. Credentials fall back to
// GOOGLE_APPLICATION_CREDENTIALS when neither field is set.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client exports entries to one sheet per year named "<year> <SheetName>".
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var _ ports.EntryExporter = (*Client)(nil)

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Ledger"
	}

	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", spreadsheetID,
		"current_sheet", yearPrefixedName(base, currentYear()))

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     base,
		sheetIDs:      map[string]int64{},
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) sheetFor(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

// refreshSheets reloads the title to sheet id map.
func (c *Client) refreshSheets(ctx context.Context) (map[string]int64, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet properties: %w", err)
	}

	ids := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}

	c.mu.Lock()
	c.sheetIDs = ids
	c.mu.Unlock()

	out := make(map[string]int64, len(ids))
	for k, v := range ids {
		out[k] = v
	}
	return out, nil
}

func (c *Client) lookupSheet(ctx context.Context, title string) (int64, bool, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, true, nil
	}
	ids, err := c.refreshSheets(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok = ids[title]
	return id, ok, nil
}

// ensureSheet returns the id of title, creating the sheet with a header row
// when it does not exist yet.
func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	id, ok, err := c.lookupSheet(ctx, title)
	if err != nil || ok {
		return id, err
	}

	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("create sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("create sheet %s: empty reply", title)
	}
	id = resp.Replies[0].AddSheet.Properties.SheetId

	header := &gsheet.ValueRange{Values: [][]any{headerRow}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1:F1", title), header).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("write header of %s: %w", title, err)
	}

	c.mu.Lock()
	c.sheetIDs[title] = id
	c.mu.Unlock()

	slog.InfoContext(ctx, "Created export sheet", "sheet", title, "sheet_id", id)
	return id, nil
}

// AppendEntry implements sheets.EntryExporter.
func (c *Client) AppendEntry(ctx context.Context, user core.UserID, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	title := c.sheetFor(e.Date.Year())
	if _, err := c.ensureSheet(ctx, title); err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{entryRow(user, e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A:F", title), vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row to %s: %w", title, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.DebugContext(ctx, "Entry exported", "user_id", int64(user), "sheets_ref", ref)
	return nil
}

// RemoveEntry deletes the first row equal to e. A missing row is not an
// error since the event may be a redelivery.
func (c *Client) RemoveEntry(ctx context.Context, user core.UserID, e core.Entry) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	title := c.sheetFor(e.Date.Year())
	sheetID, ok, err := c.lookupSheet(ctx, title)
	if err != nil {
		return err
	}
	if !ok {
		slog.WarnContext(ctx, "Export sheet missing, nothing to remove", "sheet", title)
		return nil
	}

	values, err := c.readRows(ctx, title)
	if err != nil {
		return err
	}
	for i, row := range values {
		if matchRow(row, user, e) {
			return c.deleteRows(ctx, sheetID, []int64{int64(i)})
		}
	}

	slog.WarnContext(ctx, "Exported row not found", "sheet", title, "user_id", int64(user), "entry", e.String())
	return nil
}

// ClearUser removes the rows of user from every yearly sheet.
func (c *Client) ClearUser(ctx context.Context, user core.UserID) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}

	ids, err := c.refreshSheets(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for title, sheetID := range ids {
		if _, ok := sheetYear(title, c.sheetBase); !ok {
			continue
		}
		values, err := c.readRows(ctx, title)
		if err != nil {
			return removed, err
		}
		rows := userRows(values, user)
		if len(rows) == 0 {
			continue
		}
		if err := c.deleteRows(ctx, sheetID, rows); err != nil {
			return removed, err
		}
		removed += len(rows)
	}
	return removed, nil
}

func (c *Client) readRows(ctx context.Context, title string) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:F", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// deleteRows removes zero-based row indexes, which must be sorted highest first.
func (c *Client) deleteRows(ctx context.Context, sheetID int64, rows []int64) error {
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: deleteRequests(sheetID, rows),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete %d rows: %w", len(rows), err)
	}
	return nil
}

func deleteRequests(sheetID int64, rows []int64) []*gsheet.Request {
	reqs := make([]*gsheet.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: r,
					EndIndex:   r + 1,
					// zero ids and the first row are valid and must be sent
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		})
	}
	return reqs
}
