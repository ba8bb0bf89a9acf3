package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheets is a minimal stand-in for the Sheets v4 REST surface the
// client touches: values get/append, spreadsheet get and batchUpdate.
type fakeSheets struct {
	mu       sync.Mutex
	rows     [][]any
	appends  int
	deleted  []int64
	metadata int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr struct {
			Values [][]any `json:"values"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &vr)
		f.rows = append(f.rows, vr.Values...)
		f.appends++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Transacciones!A2:K2"},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						SheetID    int64 `json:"sheetId"`
						StartIndex int64 `json:"startIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		for _, rq := range req.Requests {
			idx := rq.DeleteDimension.Range.StartIndex
			f.deleted = append(f.deleted, idx)
			f.rows = append(f.rows[:idx], f.rows[idx+1:]...)
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		var col [][]any
		for _, row := range f.rows {
			col = append(col, row[:1])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": col})
	case r.Method == http.MethodGet:
		f.metadata++
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":1,"title":"Otra"}},{"properties":{"sheetId":42,"title":"Transacciones"}}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(),
		Config{SpreadsheetID: "sheet-1", SheetName: "Transacciones"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func testTransaction(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        core.Expense,
		Description: "Renta local",
		Amount:      core.Money{Cents: 350000},
		Date:        core.NewDate(2025, 11, 1),
		Status:      core.StatusPending,
		Division:    core.DivisionGeneral,
		IsRecurring: true,
	}
}

func TestNew_RequiresSpreadsheetAndSheet(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing spreadsheet", Config{SheetName: "Transacciones"}},
		{"missing sheet name", Config{SpreadsheetID: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(context.Background(), tt.cfg, goption.WithoutAuthentication()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAppendTransaction(t *testing.T) {
	f := &fakeSheets{rows: [][]any{{"ID"}}}
	c := newTestClient(t, f)
	ctx := context.Background()

	ref, err := c.AppendTransaction(ctx, testTransaction("tx-1"))
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if ref != "Transacciones!A2:K2" {
		t.Errorf("ref = %q", ref)
	}
	if len(f.rows) != 2 || f.rows[1][0] != "tx-1" || f.rows[1][5] != 3500.0 {
		t.Errorf("rows = %v", f.rows)
	}

	// Redelivery finds the existing row instead of appending again.
	ref, err = c.AppendTransaction(ctx, testTransaction("tx-1"))
	if err != nil {
		t.Fatalf("second AppendTransaction() error = %v", err)
	}
	if f.appends != 1 {
		t.Errorf("appends = %d, want 1", f.appends)
	}
	if ref != "Transacciones!A2:K2" {
		t.Errorf("existing ref = %q", ref)
	}
}

func TestAppendTransaction_RequiresID(t *testing.T) {
	c := &Client{sheetName: "Transacciones"}
	_, err := c.AppendTransaction(context.Background(), testTransaction(""))
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	f := &fakeSheets{rows: [][]any{{"ID"}, {"tx-1"}, {"tx-2"}, {"tx-3"}}}
	c := newTestClient(t, f)
	ctx := context.Background()

	if err := c.DeleteTransaction(ctx, "tx-2"); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if len(f.deleted) != 1 || f.deleted[0] != 2 {
		t.Errorf("deleted start indexes = %v, want [2]", f.deleted)
	}
	if err := c.DeleteTransaction(ctx, "tx-3"); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if f.metadata != 1 {
		t.Errorf("sheet id resolved %d times, want 1", f.metadata)
	}

	err := c.DeleteTransaction(ctx, "missing")
	if !errors.Is(err, ports.ErrRowNotFound) {
		t.Errorf("error = %v, want ErrRowNotFound", err)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"ID"}, {}, {" tx-9 "}, {"tx-10"}}
	tests := []struct {
		id   string
		want int
	}{
		{"ID", 1},
		{"tx-9", 3},
		{"tx-10", 4},
		{"tx-1", 0},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}
