package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

func sampleSnapshot() analytics.Snapshot {
	return analytics.Snapshot{
		GeneratedAt:    "2026-03-19 06:00:00",
		DataSource:     "SyteLine IDO API (Automated)",
		LatestDataDate: "2026-03-18",
		Period:         analytics.Period{Yesterday: "2026-03-18"},
		Summary: analytics.SalesSummary{
			MTD: analytics.SalesRollup{DailySales: analytics.DailySales{Product: 350, Service: 150, Total: 500}},
		},
		ARaging: analytics.AgingSnapshot{Days1To30: 800, Total: 800},
		ARInvoices: analytics.ARInvoices{
			Current:    []analytics.OpenInvoice{},
			Days1To30:  []analytics.OpenInvoice{{InvNum: "12345", Customer: "Acme <Rentals>", Amount: 800, DueDate: "2026-02-27", DaysOverdue: 20, CoNum: "CO100"}},
			Days31To60: []analytics.OpenInvoice{},
			Days61To90: []analytics.OpenInvoice{},
			Days90Plus: []analytics.OpenInvoice{},
		},
		CashFlowPrediction: []analytics.CashFlowWeek{{
			Week: "Week of Mar 16", Confidence: 85, ExpectedCollections: 560,
			DayBreakdown: []analytics.ForecastDay{
				{Date: "2026-03-16", DayOfWeek: "Monday", Type: analytics.DayActual, Amount: 500},
				{Date: "2026-03-19", DayOfWeek: "Thursday", Type: analytics.DayPredicted, Amount: 112},
			},
		}},
		TopCustomers: analytics.TopCustomers{MTD: []analytics.TopCustomer{{Name: "Acme <Rentals>", Amount: 500}}},
		DailyTrend: []analytics.DailyTrendPoint{
			{Date: "2026-03-18", DayOfWeek: "Wednesday", DailySales: analytics.DailySales{Product: 70, Service: 30, Total: 100}},
		},
	}
}

func TestRenderDocumentInlinesSnapshot(t *testing.T) {
	tmpl := []byte("<script>\nlet DATA = null;\nrender(DATA);\n</script>")
	out, err := RenderDocument(tmpl, sampleSnapshot())
	require.NoError(t, err)

	doc := string(out)
	require.NotContains(t, doc, DataMarker)
	require.Contains(t, doc, "render(DATA);")
	require.NotContains(t, doc, "Acme <Rentals>", "payload must not carry raw angle brackets into the script")

	start := strings.Index(doc, "let DATA = ") + len("let DATA = ")
	end := strings.Index(doc[start:], ";\nrender") + start
	var decoded analytics.Snapshot
	require.NoError(t, json.Unmarshal([]byte(doc[start:end]), &decoded))
	require.Equal(t, "2026-03-18", decoded.LatestDataDate)
	require.Equal(t, "Acme <Rentals>", decoded.ARInvoices.Days1To30[0].Customer)
}

func TestRenderDocumentRequiresMarker(t *testing.T) {
	_, err := RenderDocument([]byte("<html></html>"), sampleSnapshot())
	require.ErrorIs(t, err, ErrMissingMarker)
}

func TestMarshalSnapshotIsIndented(t *testing.T) {
	data, err := MarshalSnapshot(sampleSnapshot())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("{\n  \"GeneratedAt\"")))
	require.True(t, bytes.HasSuffix(data, []byte("}\n")))
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	return records
}

func TestWriteTrendCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteTrendCSV(buf, sampleSnapshot().DailyTrend); err != nil {
		t.Fatalf("trend csv error: %v", err)
	}
	records := readCSV(t, buf)
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d", len(records))
	}
	if records[1][0] != "2026-03-18" || records[1][6] != "100.00" {
		t.Fatalf("unexpected row %v", records[1])
	}
}

func TestWriteARInvoicesCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteARInvoicesCSV(buf, sampleSnapshot().ARInvoices); err != nil {
		t.Fatalf("ar csv error: %v", err)
	}
	records := readCSV(t, buf)
	require.Len(t, records, 2)
	require.Equal(t, []string{"Days1_30", "12345", "Acme <Rentals>", "CO100", "2026-02-27", "20", "800.00"}, records[1])
}

func TestWriteForecastCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteForecastCSV(buf, sampleSnapshot().CashFlowPrediction))
	records := readCSV(t, buf)
	require.Len(t, records, 3)
	require.Equal(t, "Actual", records[1][5])
	require.Equal(t, "112.00", records[2][6])
}

func TestWriteMappingCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	rows := DataMapping(analytics.DefaultPolicy())
	require.NoError(t, WriteMappingCSV(buf, rows))
	records := readCSV(t, buf)
	require.Len(t, records, len(rows)+1)
	require.Equal(t, []string{"Component", "IDO", "Fields", "Calculation"}, records[0])
	require.Contains(t, buf.String(), "SLLedgers")
	require.Contains(t, buf.String(), "LFTR, LGAS, LIHL")
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("PDF"), nil
}

func TestPDFExporterRenderSnapshot(t *testing.T) {
	renderer := &fakeRenderer{}
	exporter := &PDFExporter{Renderer: renderer}
	data, err := exporter.RenderSnapshot(context.Background(), sampleSnapshot())
	if err != nil {
		t.Fatalf("pdf render error: %v", err)
	}
	if string(data) != "PDF" {
		t.Fatalf("unexpected payload %q", string(data))
	}
	require.Contains(t, renderer.html, "Week of Mar 16")
	require.Contains(t, renderer.html, "Acme &lt;Rentals&gt;")
	require.NotContains(t, renderer.html, "<script")
}

func TestPDFExporterWrapsRendererError(t *testing.T) {
	boom := errors.New("gotenberg down")
	exporter := &PDFExporter{Renderer: &fakeRenderer{err: boom}}
	_, err := exporter.RenderSnapshot(context.Background(), sampleSnapshot())
	require.ErrorIs(t, err, boom)

	var nilExporter *PDFExporter
	_, err = nilExporter.RenderSnapshot(context.Background(), sampleSnapshot())
	require.Error(t, err)
}
