package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

// HTMLRenderer converts an HTML document into PDF bytes.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFExporter renders a static, script-free summary of a snapshot.
type PDFExporter struct {
	Renderer HTMLRenderer
}

// RenderSnapshot builds the printable summary and sends it to the renderer.
func (p *PDFExporter) RenderSnapshot(ctx context.Context, snap analytics.Snapshot) ([]byte, error) {
	if p == nil || p.Renderer == nil {
		return nil, errors.New("export: pdf renderer not initialised")
	}
	pdf, err := p.Renderer.RenderHTML(ctx, buildHTML(snap))
	if err != nil {
		return nil, fmt.Errorf("export: render pdf: %w", err)
	}
	return pdf, nil
}

func buildHTML(snap analytics.Snapshot) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><style>")
	b.WriteString("body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}th,td{border:1px solid #ddd;padding:6px;text-align:right;}th{text-align:left;background:#f5f5f5;}section{margin-bottom:24px;} .metric-label{text-align:left;}")
	b.WriteString("</style></head><body>")
	b.WriteString(fmt.Sprintf("<h1>Executive Dashboard: data through %s</h1>", templateEscape(snap.LatestDataDate)))
	b.WriteString(fmt.Sprintf("<p>Generated %s from %s</p>", templateEscape(snap.GeneratedAt), templateEscape(snap.DataSource)))

	b.WriteString("<section><h2>Sales</h2><table><thead><tr><th>Window</th><th>Product</th><th>Service</th><th>Freight</th><th>Misc</th><th>Total</th></tr></thead><tbody>")
	writeRollupRow(&b, "Yesterday ("+snap.Period.Yesterday+")", snap.Summary.Yesterday)
	writeRollupRow(&b, "Month to date", snap.Summary.MTD)
	writeRollupRow(&b, "Year to date", snap.Summary.YTD)
	b.WriteString("</tbody></table><table><tbody>")
	writeMetricRow(&b, "MTD daily average", snap.Summary.MTDDailyAverage)
	writeMetricRow(&b, "YTD daily average", snap.Summary.YTDDailyAverage)
	b.WriteString("</tbody></table></section>")

	b.WriteString("<section><h2>AR Aging</h2><table><tbody>")
	for _, bucket := range analytics.Buckets {
		writeMetricRow(&b, bucket.String(), snap.ARaging.Get(bucket))
	}
	writeMetricRow(&b, "Total", snap.ARaging.Total)
	b.WriteString("</tbody></table></section>")

	if len(snap.CashFlowPrediction) > 0 {
		b.WriteString("<section><h2>Cash Flow Forecast</h2><table><thead><tr><th>Week</th><th>Actual</th><th>Predicted</th><th>Total</th><th>Confidence</th></tr></thead><tbody>")
		for _, week := range snap.CashFlowPrediction {
			b.WriteString("<tr><td class=\"metric-label\">")
			b.WriteString(templateEscape(week.Week))
			b.WriteString("</td><td>")
			b.WriteString(formatFloat(week.Actual))
			b.WriteString("</td><td>")
			b.WriteString(formatFloat(week.Predicted))
			b.WriteString("</td><td>")
			b.WriteString(formatFloat(week.Total))
			b.WriteString("</td><td>")
			b.WriteString(strconv.Itoa(week.Confidence))
			b.WriteString("%</td></tr>")
		}
		b.WriteString("</tbody></table></section>")
	}

	if len(snap.TopCustomers.MTD) > 0 {
		b.WriteString("<section><h2>Top Customers (MTD)</h2><table><tbody>")
		for _, c := range snap.TopCustomers.MTD {
			writeMetricRow(&b, c.Name, c.Amount)
		}
		b.WriteString("</tbody></table></section>")
	}

	b.WriteString("</body></html>")
	return b.String()
}

func writeRollupRow(b *strings.Builder, label string, r analytics.SalesRollup) {
	b.WriteString("<tr><td class=\"metric-label\">")
	b.WriteString(templateEscape(label))
	for _, v := range []float64{r.Product, r.Service, r.Freight, r.Miscellaneous, r.Total} {
		b.WriteString("</td><td>")
		b.WriteString(formatFloat(v))
	}
	b.WriteString("</td></tr>")
}

func writeMetricRow(b *strings.Builder, label string, value float64) {
	b.WriteString("<tr><td class=\"metric-label\">")
	b.WriteString(templateEscape(label))
	b.WriteString("</td><td>")
	b.WriteString(formatFloat(value))
	b.WriteString("</td></tr>")
}

func templateEscape(v string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(v)
}
