package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/rs/zerolog"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
	"fleetguard/internal/photo"
)

const (
	thumbDimension = 480
	thumbWidth     = 42.0
	margin         = 14.0
)

// Renderer builds the PDF for a completed record and hands it to a Store.
type Renderer struct {
	store Store
	log   zerolog.Logger
}

func NewRenderer(store Store, log zerolog.Logger) *Renderer {
	return &Renderer{store: store, log: log.With().Str("component", "report").Logger()}
}

func (r *Renderer) Render(ctx context.Context, rec inspection.Record) (*inspection.Report, error) {
	data, err := Build(rec)
	if err != nil {
		return nil, err
	}
	name := Filename(rec.Vehicle.ID, rec.EndedAt)
	location, err := r.store.Put(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	r.log.Info().
		Str("session", rec.SessionHandle).
		Str("location", location).
		Int("size", len(data)).
		Msg("report stored")
	return &inspection.Report{Filename: name, Location: location, Size: len(data)}, nil
}

func (r *Renderer) Fetch(ctx context.Context, location string) ([]byte, error) {
	return r.store.Get(ctx, location)
}

func Filename(vehicleID string, endedAt time.Time) string {
	return fmt.Sprintf("FleetGuard_%s_%s.pdf", vehicleID, endedAt.Format("20060102-150405"))
}

type labels struct {
	title, summary, items, vehicle, inspector, started, ended, duration string
	score, overall, counts, comment, analysis, issues, detail, photos  string
	demo, footer                                                       string
	status                                                             map[inspection.Status]string
}

var labelSets = map[string]labels{
	checklist.LocaleEN: {
		title: "FleetGuard Vehicle Inspection Report", summary: "Summary", items: "Checklist",
		vehicle: "Vehicle", inspector: "Inspector", started: "Started", ended: "Finished",
		duration: "Duration", score: "Condition score", overall: "Overall status", counts: "Critical / warning",
		comment: "Comment", analysis: "Photo analysis", issues: "Issues", detail: "Detail", photos: "Photos",
		demo:   "Demo inspection. This record was not saved.",
		footer: "Generated by FleetGuard",
		status: map[inspection.Status]string{
			inspection.StatusOK: "OK", inspection.StatusWarning: "WARNING", inspection.StatusCritical: "CRITICAL",
		},
	},
	checklist.LocaleES: {
		title: "FleetGuard Informe de Inspección Vehicular", summary: "Resumen", items: "Lista de verificación",
		vehicle: "Vehículo", inspector: "Inspector", started: "Inicio", ended: "Fin",
		duration: "Duración", score: "Puntaje de condición", overall: "Estado general", counts: "Críticos / advertencias",
		comment: "Comentario", analysis: "Análisis de fotos", issues: "Problemas", detail: "Detalle", photos: "Fotos",
		demo:   "Inspección de demostración. Este registro no fue guardado.",
		footer: "Generado por FleetGuard",
		status: map[inspection.Status]string{
			inspection.StatusOK: "OK", inspection.StatusWarning: "ADVERTENCIA", inspection.StatusCritical: "CRÍTICO",
		},
	},
}

func labelsFor(locale string) labels {
	if l, ok := labelSets[locale]; ok {
		return l
	}
	return labelSets[checklist.LocaleEN]
}

var statusColors = map[inspection.Status][3]int{
	inspection.StatusOK:       {46, 125, 50},
	inspection.StatusWarning:  {230, 140, 0},
	inspection.StatusCritical: {198, 40, 40},
}

type page struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

// Build renders the record as an A4 PDF. Core fonts are used, so text goes through a cp1252 translator.
func Build(rec inspection.Record) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("FleetGuard Inspection "+rec.Vehicle.ID, true)
	pdf.SetAuthor(rec.Operator.Name, true)

	p := page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	l := labelsFor(rec.Locale)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, p.tr(fmt.Sprintf("%s  |  %d", l.footer, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 9, p.tr(l.title), "", 1, "L", false, 0, "")
	if rec.Demo {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(120, 80, 0)
		pdf.MultiCell(0, 5, p.tr(l.demo), "", "L", false)
	}
	pdf.Ln(2)

	p.sectionTitle(l.summary)
	p.kv(l.vehicle, vehicleLine(rec.Vehicle))
	p.kv(l.inspector, fmt.Sprintf("%s (%s)", rec.Operator.Name, rec.Operator.ID))
	p.kv(l.started, fmtTime(rec.StartedAt))
	p.kv(l.ended, fmtTime(rec.EndedAt))
	p.kv(l.duration, (time.Duration(rec.DurationSeconds) * time.Second).String())
	p.kv(l.score, fmt.Sprintf("%d / 100", rec.Score))
	p.kv(l.counts, fmt.Sprintf("%d / %d", rec.CriticalCount, rec.WarningCount))
	overall := rec.OverallStatus()
	p.badge(l.overall, l.status[overall], overall)
	pdf.Ln(3)

	p.sectionTitle(l.items)
	for i, it := range rec.Items {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(20, 20, 20)
		pdf.CellFormat(0, 6, p.tr(fmt.Sprintf("%d. %s", i+1, it.Item.Label(rec.Locale))), "", 1, "L", false, 0, "")
		p.badge("", l.status[it.Status], it.Status)
		p.kv(l.comment, it.Comment)
		if it.Item.NeedsPhotos() {
			p.kv(l.analysis, it.Analysis.Status)
			p.kv(l.issues, strings.Join(it.Analysis.Issues, ", "))
			p.kv(l.detail, it.Analysis.Detail)
			p.kv(l.photos, fmt.Sprintf("%d", it.PhotoCount))
			p.thumbnails(rec.SessionHandle, i, it.Photos)
		}
		pdf.Ln(2)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("build pdf: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (p page) sectionTitle(title string) {
	p.pdf.SetFont("Helvetica", "B", 12)
	p.pdf.SetTextColor(0, 0, 0)
	p.pdf.CellFormat(0, 7, p.tr(title), "", 1, "L", false, 0, "")
	p.pdf.SetDrawColor(200, 200, 200)
	p.pdf.Line(p.pdf.GetX(), p.pdf.GetY(), 196, p.pdf.GetY())
	p.pdf.Ln(2)
}

func (p page) kv(key, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	p.pdf.SetFont("Helvetica", "B", 10)
	p.pdf.SetTextColor(30, 30, 30)
	p.pdf.CellFormat(44, 5.2, p.tr(key+":"), "", 0, "L", false, 0, "")
	p.pdf.SetFont("Helvetica", "", 10)
	p.pdf.SetTextColor(20, 20, 20)
	p.pdf.MultiCell(0, 5.2, p.tr(flatten(value)), "", "L", false)
}

func (p page) badge(key, text string, status inspection.Status) {
	if key != "" {
		p.pdf.SetFont("Helvetica", "B", 10)
		p.pdf.SetTextColor(30, 30, 30)
		p.pdf.CellFormat(44, 6, p.tr(key+":"), "", 0, "L", false, 0, "")
	}
	c := statusColors[status]
	p.pdf.SetFillColor(c[0], c[1], c[2])
	p.pdf.SetTextColor(255, 255, 255)
	p.pdf.SetFont("Helvetica", "B", 9)
	p.pdf.CellFormat(30, 6, p.tr(text), "", 1, "C", true, 0, "")
	p.pdf.Ln(1)
}

// thumbnails lays photos out in one row. Photos that cannot be decoded are skipped.
func (p page) thumbnails(handle string, index int, photos []inspection.Photo) {
	if len(photos) == 0 {
		return
	}
	type thumb struct {
		name   string
		height float64
	}
	thumbs := make([]thumb, 0, len(photos))
	rowHeight := 0.0
	for j, ph := range photos {
		data, _, err := photo.Downscale(ph.Data, thumbDimension)
		if err != nil {
			continue
		}
		name := fmt.Sprintf("%s-%d-%d", handle, index, j)
		info := p.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(data))
		if p.pdf.Err() || info == nil || info.Width() == 0 {
			p.pdf.ClearError()
			continue
		}
		h := thumbWidth * info.Height() / info.Width()
		if h > rowHeight {
			rowHeight = h
		}
		thumbs = append(thumbs, thumb{name: name, height: h})
	}
	if len(thumbs) == 0 {
		return
	}

	_, pageHeight := p.pdf.GetPageSize()
	if p.pdf.GetY()+rowHeight > pageHeight-margin {
		p.pdf.AddPage()
	}
	x, y := p.pdf.GetX(), p.pdf.GetY()
	for k, t := range thumbs {
		p.pdf.ImageOptions(t.name, x+float64(k)*(thumbWidth+4), y, thumbWidth, t.height, false,
			gofpdf.ImageOptions{ImageType: "JPG"}, 0, "")
	}
	p.pdf.SetY(y + rowHeight + 2)
}

func vehicleLine(v inspection.Vehicle) string {
	parts := []string{v.ID}
	if v.Model != "" {
		parts = append(parts, v.Model)
	}
	if v.Year > 0 {
		parts = append(parts, fmt.Sprintf("(%d)", v.Year))
	}
	return strings.Join(parts, " ")
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func flatten(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	return strings.TrimSpace(s)
}
