package labels

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strconv"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/go-pdf/fpdf"

	"pricetags/internal/core/apperror"
	"pricetags/pkg/logger"
)

// Page geometry is in millimetres, measured from the bottom-left corner of the
// label and converted to fpdf's top-left origin when drawing.
const (
	mmPerCM = 10.0
	mmPerPt = 25.4 / 72.0

	fontFamily = "Helvetica"

	sideMargin = 5.0 // left and right

	descSingleY = 24.0
	descFirstY  = 25.0
	descSecondY = 21.0

	priceFontSize = 31.5
	priceY        = 9.0

	barcodeBoxWidth = 35.0 // from the right edge
	barcodeWidth    = 30.0
	barcodeHeight   = 7.0
	barcodeY        = 11.0
	eanFontSize     = 9.0
	eanGapPt        = 10.0
)

// Size is the physical label size.
type Size struct {
	WidthCM  float64
	HeightCM float64
}

// DefaultSize is a 9cm x 3cm gondola label.
func DefaultSize() Size {
	return Size{WidthCM: 9, HeightCM: 3}
}

func (s Size) width() float64  { return s.WidthCM * mmPerCM }
func (s Size) height() float64 { return s.HeightCM * mmPerCM }

// PrintableWidth is the width available to the description, in mm.
func (s Size) PrintableWidth() float64 { return s.width() - 2*sideMargin }

// Label is the content of one printed label.
type Label struct {
	Code        int
	Description string
	Price       string
	EAN         string
}

// Renderer draws labels into a PDF with one page per label.
type Renderer struct {
	size Size
}

// NewRenderer creates a renderer for the given label size.
func NewRenderer(size Size) *Renderer {
	return &Renderer{size: size}
}

// pdfMeasurer measures Helvetica Bold text on a scratch document.
type pdfMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// newPDFMeasurer measures with the core font metrics of pdf, in mm.
func newPDFMeasurer(pdf *fpdf.Fpdf, tr func(string) string) *pdfMeasurer {
	return &pdfMeasurer{pdf: pdf, tr: tr}
}

func (m *pdfMeasurer) StringWidth(text string, size float64) float64 {
	m.pdf.SetFont(fontFamily, "B", size)
	return m.pdf.GetStringWidth(m.tr(text))
}

// Render writes labels to path and returns the number of pages written.
// A barcode that cannot be encoded is logged and left out of its label.
func (r *Renderer) Render(ctx context.Context, labels []Label, path string) (int, error) {
	w, h := r.size.width(), r.size.height()

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Etiquetas", true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	measure := newPDFMeasurer(pdf, tr)

	for i, l := range labels {
		logger.Debug(ctx, "rendering label", "index", i+1, "code", l.Code, "price", l.Price, "ean", l.EAN)

		pdf.AddPage()

		fit := FitDescription(l.Description, r.size.PrintableWidth(), measure)
		if fit.Overflow {
			logger.Warn(ctx, "description does not fit at minimum font size", "code", l.Code)
		}
		r.drawDescription(pdf, tr, fit)

		pdf.SetFont(fontFamily, "B", priceFontSize)
		pdf.Text(sideMargin, h-priceY, tr(l.Price))

		if ShouldRenderBarcode(l.EAN) {
			if err := r.drawBarcode(pdf, tr, l.EAN, i); err != nil {
				logger.Warn(ctx, "barcode skipped", "code", l.Code, "ean", l.EAN, "error", err)
			}
		}

		pdf.SetDrawColor(0, 0, 0)
		pdf.Rect(0, 0, w, h, "D")
	}

	pages := pdf.PageCount()
	if err := pdf.OutputFileAndClose(path); err != nil {
		return 0, fmt.Errorf("write labels pdf %s: %w", path, err)
	}
	return pages, nil
}

func (r *Renderer) drawDescription(pdf *fpdf.Fpdf, tr func(string) string, fit Fit) {
	h := r.size.height()
	pdf.SetFont(fontFamily, "B", fit.Size)

	if fit.SingleLine() {
		r.centered(pdf, tr(fit.Lines[0]), r.size.width()/2, h-descSingleY)
		return
	}
	r.centered(pdf, tr(fit.Lines[0]), r.size.width()/2, h-descFirstY)
	r.centered(pdf, tr(fit.Lines[1]), r.size.width()/2, h-descSecondY)
}

func (r *Renderer) centered(pdf *fpdf.Fpdf, text string, cx, y float64) {
	pdf.Text(cx-pdf.GetStringWidth(text)/2, y, text)
}

func (r *Renderer) drawBarcode(pdf *fpdf.Fpdf, tr func(string) string, ean string, index int) error {
	img, err := EncodeBarcode(ean)
	if err != nil {
		return err
	}

	name := "barcode-" + strconv.Itoa(index)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))

	w, h := r.size.width(), r.size.height()
	boxX := w - barcodeBoxWidth
	center := boxX + barcodeBoxWidth/2
	top := h - barcodeY - barcodeHeight

	pdf.ImageOptions(name, center-barcodeWidth/2, top, barcodeWidth, barcodeHeight, false, opts, 0, "")

	pdf.SetFont(fontFamily, "", eanFontSize)
	r.centered(pdf, tr(ean), center, h-barcodeY+eanGapPt*mmPerPt)
	return nil
}

// EncodeBarcode renders ean as a Code128 PNG.
func EncodeBarcode(ean string) ([]byte, error) {
	code, err := code128.Encode(ean)
	if err != nil {
		return nil, apperror.NewRender("barcode", err).WithDetail("ean", ean)
	}

	scaled, err := barcode.Scale(code, code.Bounds().Dx()*4, 120)
	if err != nil {
		return nil, apperror.NewRender("barcode", err).WithDetail("ean", ean)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, apperror.NewRender("barcode", err).WithDetail("ean", ean)
	}
	return buf.Bytes(), nil
}
