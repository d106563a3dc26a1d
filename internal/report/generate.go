package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// Page geometry, in inches.
const (
	pageWidth   = 13.0
	pageHeight  = 8.5
	margin      = 0.5
	tableTop    = 1.5
	summaryGap  = 0.3
	summaryEst  = 2.5
	checkWidth  = 0.3
	nameWidth   = 2.5
	dateWidth   = 0.9
	timeWidth   = 0.7
	lineHeight  = 0.13
	cellPadding = 0.02
)

// Letterhead is the institution block printed at the top of every page.
type Letterhead struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
	Contact string `yaml:"contact" json:"contact"`
}

// DefaultLetterhead is used when Options.Letterhead is empty.
var DefaultLetterhead = Letterhead{
	Name:    "General de Jesus College",
	Address: "VALLARTA ST. POBLACION, SAN ISIDRO, NUEVA ECIJA",
	Contact: "(+6344) 940-6161 | gdjcdejesus@gmail.com | gdjcdejesus.edu.ph",
}

// Options parameterize one report.
type Options struct {
	SchoolYear string
	TitleDate  string
	// Logo is a PNG image; the letterhead is printed without one when empty.
	Logo       []byte
	Letterhead Letterhead
	// GeneratedAt stamps the document metadata. Identical inputs with the
	// same GeneratedAt produce identical bytes.
	GeneratedAt time.Time
}

// Title is the heading line of the report.
func (o Options) Title() string {
	return fmt.Sprintf("Daily Record of Library Users SY: %s %s", o.SchoolYear, o.TitleDate)
}

// Document is a rendered report.
type Document struct {
	data    []byte
	pages   int
	summary Summary
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int { return d.pages }

// Summary returns the aggregates printed in the document.
func (d *Document) Summary() Summary { return d.summary }

// Bytes returns the encoded PDF.
func (d *Document) Bytes() []byte { return d.data }

// WriteTo writes the encoded PDF to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data)
	return int64(n), err
}

// Generate lays out the attendance report for entries. categories fixes
// the check columns and their order.
func Generate(entries []Entry, categories []string, opts Options) (*Document, error) {
	if opts.Letterhead == (Letterhead{}) {
		opts.Letterhead = DefaultLetterhead
	}
	r := newRenderer(entries, categories, opts)
	if err := r.render(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return &Document{data: buf.Bytes(), pages: r.pdf.PageCount(), summary: r.sum}, nil
}

// ── Renderer ───────────────────────────────────────────────

type renderer struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	entries []Entry
	cats    []string
	opts    Options
	sum     Summary
	logo    bool
}

func newRenderer(entries []Entry, categories []string, opts Options) *renderer {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "in",
		Size:           fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(margin, tableTop, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetCellMargin(cellPadding)
	pdf.SetTitle(opts.Title(), true)
	pdf.SetProducer("docdesk", true)
	pdf.SetCatalogSort(true)
	if !opts.GeneratedAt.IsZero() {
		pdf.SetCreationDate(opts.GeneratedAt)
		pdf.SetModificationDate(opts.GeneratedAt)
	}

	return &renderer{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		entries: entries,
		cats:    categories,
		opts:    opts,
		sum:     Summarize(entries, categories),
	}
}

func (r *renderer) render() error {
	if len(r.opts.Logo) > 0 {
		r.pdf.RegisterImageOptionsReader("logo", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(r.opts.Logo))
		if err := r.pdf.Error(); err != nil {
			return fmt.Errorf("load logo: %w", err)
		}
		r.logo = true
	}
	r.pdf.SetHeaderFuncMode(r.letterhead, false)

	r.pdf.AddPage()
	r.pdf.SetY(tableTop)
	r.mainTable()
	r.summaryBlock()
	r.stampPageNumbers()

	if err := r.pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// letterhead runs on every new page.
func (r *renderer) letterhead() {
	const logoSize = 0.6
	logoY := margin / 2
	textX := margin + logoSize + 0.1

	if r.logo {
		r.pdf.ImageOptions("logo", margin, logoY, logoSize, logoSize, false,
			fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.SetFont("Helvetica", "B", 14)
	r.pdf.Text(textX, logoY+0.15, r.tr(r.opts.Letterhead.Name))

	r.pdf.SetFont("Helvetica", "", 8)
	r.pdf.Text(textX, logoY+0.3, r.tr(r.opts.Letterhead.Address))
	r.pdf.Text(textX, logoY+0.45, r.tr(r.opts.Letterhead.Contact))

	r.pdf.SetFont("Helvetica", "B", 10)
	title := r.tr(r.opts.Title())
	r.pdf.Text((pageWidth-r.pdf.GetStringWidth(title))/2, logoY+logoSize+0.15, title)
}

// ── Main table ─────────────────────────────────────────────

type cell struct {
	text  string
	align string
	bold  bool
	size  float64
	check bool
	fill  int // grey level, 0 for none
	span  int
}

func (r *renderer) columnWidths() []float64 {
	widths := []float64{dateWidth, timeWidth, nameWidth}
	for range r.cats {
		widths = append(widths, checkWidth)
	}
	used := dateWidth + timeWidth + nameWidth + checkWidth*float64(len(r.cats))
	widths = append(widths, max(pageWidth-2*margin-used, 1.0))
	return widths
}

func (r *renderer) headRow() []cell {
	row := []cell{
		{text: "DATE", align: "C", bold: true, size: 7, fill: 230},
		{text: "TIME", align: "C", bold: true, size: 7, fill: 230},
		{text: "NAME (Last Name, First Name)", align: "L", bold: true, size: 7, fill: 230},
	}
	for _, c := range r.cats {
		row = append(row, cell{text: c, align: "C", bold: true, size: 6, fill: 230})
	}
	return append(row, cell{text: "Purpose of Visit", align: "L", bold: true, size: 7, fill: 230})
}

func (r *renderer) mainTable() {
	widths := r.columnWidths()
	head := r.headRow()
	r.row(widths, head, true)

	for _, e := range r.entries {
		row := []cell{
			{text: e.Date, align: "C", size: 7},
			{text: e.Time, align: "C", size: 7},
			{text: e.Name, align: "L", size: 7},
		}
		for _, c := range r.cats {
			row = append(row, cell{check: e.Course == c, align: "C", size: 8})
		}
		row = append(row, cell{text: e.Purpose, align: "L", size: 7})
		if r.breakIfNeeded(r.rowHeight(widths, row)) {
			r.row(widths, head, true)
		}
		r.row(widths, row, true)
	}

	totals := []cell{{text: "Total:", align: "R", bold: true, size: 7, fill: 240, span: 3}}
	for _, c := range r.sum.Categories {
		totals = append(totals, cell{text: fmt.Sprint(c.Count), align: "C", bold: true, size: 7, fill: 240})
	}
	totals = append(totals, cell{
		text: fmt.Sprintf("Grand Total: %d", r.sum.GrandTotal), align: "R", bold: true, size: 7, fill: 240,
	})
	if r.breakIfNeeded(r.rowHeight(widths, totals)) {
		r.row(widths, head, true)
	}
	r.row(widths, totals, true)
}

// breakIfNeeded starts a new page when a row of height h would cross the
// bottom margin.
func (r *renderer) breakIfNeeded(h float64) bool {
	if r.pdf.GetY()+h <= pageHeight-margin {
		return false
	}
	r.pdf.AddPage()
	r.pdf.SetY(tableTop)
	return true
}

// spanWidths folds widths according to each cell's span.
func spanWidths(widths []float64, cells []cell) []float64 {
	out := make([]float64, 0, len(cells))
	col := 0
	for _, c := range cells {
		span := max(c.span, 1)
		w := 0.0
		for i := 0; i < span && col < len(widths); i++ {
			w += widths[col]
			col++
		}
		out = append(out, w)
	}
	return out
}

func (r *renderer) lines(c cell, w float64) []string {
	if c.check || c.text == "" {
		return []string{""}
	}
	r.setCellFont(c)
	lines := r.pdf.SplitText(r.tr(c.text), w-2*cellPadding)
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func (r *renderer) setCellFont(c cell) {
	style := ""
	if c.bold {
		style = "B"
	}
	size := c.size
	if size == 0 {
		size = 8
	}
	r.pdf.SetFont("Helvetica", style, size)
}

func (r *renderer) rowHeight(widths []float64, cells []cell) float64 {
	ws := spanWidths(widths, cells)
	h := 1
	for i, c := range cells {
		h = max(h, len(r.lines(c, ws[i])))
	}
	return float64(h)*lineHeight + 2*cellPadding
}

// row draws one table row at the current Y and advances past it.
func (r *renderer) row(widths []float64, cells []cell, border bool) {
	ws := spanWidths(widths, cells)
	h := r.rowHeight(widths, cells)
	left, _, _, _ := r.pdf.GetMargins()
	x, y := left, r.pdf.GetY()

	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.SetLineWidth(0.01)
	for i, c := range cells {
		w := ws[i]
		style := ""
		if c.fill > 0 {
			r.pdf.SetFillColor(c.fill, c.fill, c.fill)
			style = "F"
		}
		if border {
			style += "D"
		}
		if style != "" {
			r.pdf.Rect(x, y, w, h, style)
		}

		if c.check {
			r.pdf.SetFont("ZapfDingbats", "", c.size)
			r.pdf.SetXY(x, y+cellPadding)
			r.pdf.CellFormat(w, lineHeight, "4", "", 0, "C", false, 0, "")
		} else {
			lines := r.lines(c, w)
			for j, line := range lines {
				r.pdf.SetXY(x, y+cellPadding+float64(j)*lineHeight)
				r.pdf.CellFormat(w, lineHeight, line, "", 0, c.align, false, 0, "")
			}
		}
		x += w
	}
	r.pdf.SetXY(left, y+h)
}

// ── Summary block ──────────────────────────────────────────

func (r *renderer) summaryBlock() {
	start := r.pdf.GetY() + summaryGap
	y := start
	if r.pdf.PageNo() == 1 && start+summaryEst > pageHeight-margin {
		r.pdf.AddPage()
		y = tableTop
	}

	width := pageWidth - 2*margin
	r.pdf.SetFillColor(204, 204, 204)
	r.pdf.Rect(margin, y, width, 0.3, "F")
	r.pdf.SetFont("Helvetica", "B", 12)
	heading := r.tr("Total Attendance by Purpose - " + r.opts.TitleDate)
	r.pdf.Text((pageWidth-r.pdf.GetStringWidth(heading))/2, y+0.2, heading)
	r.pdf.SetXY(margin, y+0.4)

	r.categorySummary()
	r.pdf.SetY(r.pdf.GetY() + 0.5)
	r.purposeTable()
}

// categorySummary prints "CATEGORY: n" pairs, CategoriesPerRow to a row,
// closed by the overall total.
func (r *renderer) categorySummary() {
	widths := make([]float64, 0, 2*CategoriesPerRow)
	for range CategoriesPerRow {
		widths = append(widths, 0.8, 0.5)
	}

	for _, chunk := range r.sum.Rows {
		row := make([]cell, 0, len(widths))
		for _, c := range chunk {
			row = append(row,
				cell{text: c.Category + ":", align: "L", bold: true, size: 8},
				cell{text: fmt.Sprint(c.Count), align: "L", size: 8},
			)
		}
		if pad := len(widths) - len(row); pad > 0 {
			row = append(row, cell{span: pad})
		}
		r.breakIfNeeded(r.rowHeight(widths, row))
		r.row(widths, row, false)
	}

	total := []cell{{
		text: fmt.Sprintf("Total Attendance: %d", r.sum.GrandTotal),
		align: "R", bold: true, size: 9, span: len(widths),
	}}
	r.breakIfNeeded(r.rowHeight(widths, total))
	y := r.pdf.GetY()
	full := spanWidths(widths, total)[0]
	r.pdf.SetLineWidth(0.015)
	r.pdf.Line(margin, y, margin+full, y)
	r.row(widths, total, false)
}

// purposeTable is a one-row cross-tab: purposes as headings, counts below.
func (r *renderer) purposeTable() {
	if len(r.sum.Purposes) == 0 {
		return
	}
	left := margin * 4
	width := pageWidth - 2*left
	colW := width / float64(len(r.sum.Purposes))
	widths := make([]float64, len(r.sum.Purposes))
	head := make([]cell, len(r.sum.Purposes))
	body := make([]cell, len(r.sum.Purposes))
	for i, p := range r.sum.Purposes {
		widths[i] = colW
		head[i] = cell{text: p.Label, align: "C", bold: true, size: 8, fill: 230}
		body[i] = cell{text: fmt.Sprint(p.Count), align: "C", size: 8}
	}

	h := r.rowHeight(widths, head) + r.rowHeight(widths, body)
	r.breakIfNeeded(h)
	r.indented(left, func() {
		r.row(widths, head, true)
		r.row(widths, body, true)
	})
}

// indented draws rows with a wider left margin.
func (r *renderer) indented(left float64, draw func()) {
	r.pdf.SetLeftMargin(left)
	defer r.pdf.SetLeftMargin(margin)
	draw()
}

// ── Footer pass ────────────────────────────────────────────

// stampPageNumbers writes "Page X of N" once the page count is final.
func (r *renderer) stampPageNumbers() {
	total := r.pdf.PageCount()
	r.pdf.SetFont("Helvetica", "", 8)
	r.pdf.SetTextColor(0, 0, 0)
	for i := 1; i <= total; i++ {
		r.pdf.SetPage(i)
		text := fmt.Sprintf("Page %d of %d", i, total)
		r.pdf.Text(pageWidth-margin-r.pdf.GetStringWidth(text), pageHeight-margin/2, text)
	}
	r.pdf.SetPage(total)
}
