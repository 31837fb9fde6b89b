package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries everything the certificate template needs. The
// caller is responsible for gating issuance; the renderer only draws.
type CertificateData struct {
	ParticipantName string
	EventTitle      string
	OfferingName    string
	DurationHours   int
	FinalGrade      *float64
	IssuedAt        time.Time
}

// CertificateRenderer renders completion certificates as PDF documents.
type CertificateRenderer struct {
	institution string
}

// NewCertificateRenderer constructs a renderer stamped with the institution name.
func NewCertificateRenderer(institution string) *CertificateRenderer {
	if institution == "" {
		institution = "Direccion de Bienestar"
	}
	return &CertificateRenderer{institution: institution}
}

// Render produces the certificate PDF bytes.
func (r *CertificateRenderer) Render(data CertificateData) ([]byte, error) {
	if data.ParticipantName == "" || data.OfferingName == "" {
		return nil, fmt.Errorf("certificate requires participant and offering names")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 12, strings.ToUpper(r.institution), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "certifies that", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, data.ParticipantName, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 12)
	body := fmt.Sprintf("completed the offering %q of the event %q (%d hours).",
		data.OfferingName, data.EventTitle, data.DurationHours)
	pdf.MultiCell(0, 8, body, "", "C", false)
	if data.FinalGrade != nil {
		pdf.Ln(2)
		pdf.CellFormat(0, 8, fmt.Sprintf("Final grade: %.1f", *data.FinalGrade), "", 1, "C", false, 0, "")
	}

	pdf.Ln(12)
	pdf.SetFont("Arial", "I", 10)
	issued := data.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	pdf.CellFormat(0, 8, "Issued on "+issued.Format("January 2, 2006"), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
