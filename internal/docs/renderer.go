// Package docs renders ticket and invoice documents. Rendering failures
// after money has moved are reported as Fatal by the callers and never roll
// the business state back; a document can always be regenerated.
package docs

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"

	"ms-booking/internal/models"
)

type Renderer struct {
	FontPath string
	QR       *QRGenerator
}

func NewRenderer(fontPath, qrSecret string) *Renderer {
	return &Renderer{
		FontPath: fontPath,
		QR:       NewQRGenerator(qrSecret),
	}
}

// RenderTicket produces the printable ticket: details plus the encrypted QR.
func (r *Renderer) RenderTicket(ticket models.Ticket) ([]byte, error) {
	qrCode, err := r.QR.GenerateEncryptedQR(ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR: %w", err)
	}

	pdf, err := r.newPDF()
	if err != nil {
		return nil, err
	}

	addHeader(pdf, "ADMISSION TICKET")

	pdf.SetY(70)
	place := ticket.SeatID
	if ticket.Kind == models.KindStanding {
		place = "standing sector " + ticket.SectorID
	}
	writeLines(pdf, []line{
		{"Ticket", ticket.TicketID},
		{"Show", ticket.ShowID},
		{"Place", place},
		{"Price", fmt.Sprintf("%.2f", ticket.Price)},
		{"Status", string(ticket.Status)},
	})

	pdf.SetY(pdf.GetY() + 20)
	addQRCode(pdf, qrCode)

	addFooter(pdf)
	return finishPDF(pdf)
}

// RenderOrderInvoice produces the invoice stored alongside a purchase.
func (r *Renderer) RenderOrderInvoice(order models.Order, tickets []models.Ticket) ([]byte, error) {
	pdf, err := r.newPDF()
	if err != nil {
		return nil, err
	}

	addHeader(pdf, "ORDER INVOICE")

	pdf.SetY(70)
	writeLines(pdf, []line{
		{"Order", order.OrderID},
		{"Customer", order.UserID},
		{"Date", order.CreatedAt.Format("2006-01-02 15:04")},
	})

	pdf.SetY(pdf.GetY() + 10)
	for _, t := range tickets {
		writeLines(pdf, []line{{"Ticket " + t.TicketID, fmt.Sprintf("%.2f", t.Price)}})
	}

	pdf.SetY(pdf.GetY() + 10)
	writeLines(pdf, []line{{"Total", fmt.Sprintf("%.2f", order.Total)}})

	addFooter(pdf)
	return finishPDF(pdf)
}

// RenderCancellationInvoice produces the refund paperwork for a cancelled
// purchase.
func (r *Renderer) RenderCancellationInvoice(invoice models.CancellationInvoice, tickets []models.Ticket) ([]byte, error) {
	pdf, err := r.newPDF()
	if err != nil {
		return nil, err
	}

	addHeader(pdf, "CANCELLATION INVOICE")

	pdf.SetY(70)
	writeLines(pdf, []line{
		{"Invoice", invoice.InvoiceNumber},
		{"Order", invoice.OrderID},
		{"Customer", invoice.UserID},
		{"Date", invoice.CreatedAt.Format("2006-01-02 15:04")},
	})

	pdf.SetY(pdf.GetY() + 10)
	for _, t := range tickets {
		writeLines(pdf, []line{{"Ticket " + t.TicketID, fmt.Sprintf("-%.2f", t.Price)}})
	}

	pdf.SetY(pdf.GetY() + 10)
	writeLines(pdf, []line{{"Refunded", fmt.Sprintf("%.2f", invoice.Total)}})

	addFooter(pdf)
	return finishPDF(pdf)
}

func (r *Renderer) newPDF() (*gopdf.GoPdf, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("dejavu", r.FontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("dejavu", "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	return pdf, nil
}

type line struct {
	Label string
	Value string
}

func writeLines(pdf *gopdf.GoPdf, lines []line) {
	for _, item := range lines {
		pdf.SetX(40)
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(20)
	}
}

func addHeader(pdf *gopdf.GoPdf, title string) {
	pdf.SetX(40)
	pdf.SetY(30)
	pdf.Cell(nil, title)
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	rect := &gopdf.Rect{W: 100, H: 100}
	_ = pdf.ImageFrom(img, 40, pdf.GetY(), rect)
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetY(800)
	pdf.SetX(40)
	pdf.Cell(nil, "Keep this document for your records.")
}

func finishPDF(pdf *gopdf.GoPdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
