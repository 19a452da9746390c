package render

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/ports/adapter"
	"coop-voucher/internal/infra/logging"
)

var _ adapter.ArtifactRenderer = (*PDFRenderer)(nil)

const contentTypePDF = "application/pdf"

// layout describes one page format. Units are millimetres.
type layout struct {
	size     gofpdf.SizeType
	margin   float64
	qrSize   float64
	title    float64 // font sizes
	body     float64
	fineLine float64
}

var layouts = map[adapter.Format]layout{
	adapter.FormatPrint:   {size: gofpdf.SizeType{Wd: 210, Ht: 297}, margin: 20, qrSize: 60, title: 22, body: 12, fineLine: 8},
	adapter.FormatDisplay: {size: gofpdf.SizeType{Wd: 90, Ht: 160}, margin: 6, qrSize: 50, title: 14, body: 9, fineLine: 6},
}

// PDFRenderer draws vouchers as PDF documents with an embedded QR code of the
// signed verification payload.
type PDFRenderer struct {
	currency string
	log      *zerolog.Logger
}

func NewPDFRenderer(currency string, logger *zerolog.Logger) *PDFRenderer {
	l := logger.With().Str("component", "PDFRenderer").Logger()
	return &PDFRenderer{currency: currency, log: &l}
}

func (r *PDFRenderer) Render(ctx context.Context, in adapter.RenderInput, format adapter.Format) (*adapter.Artifact, error) {
	defer logging.TraceDuration(r.log, "PDFRenderer.Render")()

	lay, ok := layouts[format]
	if !ok {
		return nil, fmt.Errorf("%w: unknown format %q", domain.ErrInvalidArgument, format)
	}
	if in.Payload == "" || in.Serial == "" {
		return nil, fmt.Errorf("%w: payload and serial are required", domain.ErrArtifactGenerationFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qrPng, err := qrcode.Encode(in.Payload, qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("%w: qr: %v", domain.ErrArtifactGenerationFailed, err)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{OrientationStr: "P", UnitStr: "mm", Size: lay.size})
	pdf.SetMargins(lay.margin, lay.margin, lay.margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(in.Template+" "+in.Serial, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	width := lay.size.Wd - 2*lay.margin

	pdf.SetFont("Helvetica", "B", lay.title)
	pdf.CellFormat(width, lay.title*0.6, tr(in.Template), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", lay.body)
	pdf.CellFormat(width, lay.body*0.6, tr(in.Association), "", 1, "C", false, 0, "")
	pdf.Ln(lay.body * 0.4)

	pdf.SetFont("Helvetica", "B", lay.title)
	pdf.CellFormat(width, lay.title*0.6, FormatAmount(in.Amount, r.currency), "", 1, "C", false, 0, "")
	pdf.Ln(lay.body * 0.4)

	imgName := "qr_" + in.Serial
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(qrPng))
	qrX := (lay.size.Wd - lay.qrSize) / 2
	pdf.ImageOptions(imgName, qrX, pdf.GetY(), lay.qrSize, lay.qrSize, true, opts, 0, "")
	pdf.Ln(lay.body * 0.4)

	pdf.SetFont("Courier", "B", lay.body+2)
	pdf.CellFormat(width, lay.body*0.6, in.Serial, "", 1, "C", false, 0, "")
	pdf.Ln(lay.body * 0.4)

	pdf.SetFont("Helvetica", "", lay.body)
	rows := [][2]string{
		{"Holder", in.HolderName},
		{"Member", in.MemberID},
		{"Issued", in.IssuedAt.Format("2006-01-02")},
	}
	if in.ExpiresAt != nil {
		rows = append(rows, [2]string{"Valid until", in.ExpiresAt.Format("2006-01-02")})
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.CellFormat(width*0.4, lay.body*0.55, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(width*0.6, lay.body*0.55, tr(row[1]), "", 1, "R", false, 0, "")
	}

	pdf.SetY(lay.size.Ht - lay.margin - lay.fineLine*0.5)
	pdf.SetFont("Helvetica", "I", lay.fineLine)
	pdf.CellFormat(width, lay.fineLine*0.5, "Present this voucher at an eligible site. Single use.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.log.Error().Err(err).Str("serial", in.Serial).Msg("pdf output failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactGenerationFailed, err)
	}

	return &adapter.Artifact{
		VoucherID:   in.VoucherID,
		Format:      format,
		ContentType: contentTypePDF,
		FileName:    fmt.Sprintf("%s-%s.pdf", in.Serial, format),
		Data:        buf.Bytes(),
	}, nil
}

// FormatAmount renders integer currency units with thousands separators, e.g. "50,000 KRW".
func FormatAmount(amount int64, currency string) string {
	s := strconv.FormatInt(amount, 10)
	neg := amount < 0
	if neg {
		s = s[1:]
	}
	var b []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b = append(b, ',')
		}
		b = append(b, s[i])
	}
	out := string(b)
	if neg {
		out = "-" + out
	}
	if currency != "" {
		out += " " + currency
	}
	return out
}
