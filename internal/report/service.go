package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"medconsult/internal/consultation"
)

// TelegramClient delivers alerts and documents to the clinician channel.
type TelegramClient interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

// Service renders consultation reports as PDF and escalates emergencies.
type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	logger       *zap.Logger
}

func NewService(tg TelegramClient, doctorChatID int64, logger *zap.Logger) *Service {
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		logger:       logger,
	}
}

var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// GeneratePDF renders a consultation summary document.
func (s *Service) GeneratePDF(c *consultation.Consultation) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, ensure ttf-dejavu is installed: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Medical Consultation Report")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", c.CreatedAt.Format("02.01.2006 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Consultation ID: %s", c.ID))
	pdf.Br(15)
	if c.Patient != nil && c.Patient.Age > 0 {
		pdf.Cell(nil, fmt.Sprintf("Patient: age %d, %s", c.Patient.Age, c.Patient.Gender))
		pdf.Br(15)
	}
	pdf.Br(10)

	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Reported Symptoms:")
	pdf.Br(15)
	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	writeWrapped(&pdf, c.Symptoms)
	pdf.Br(10)

	if c.Response != nil {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, fmt.Sprintf("Assessment (urgency: %s):", strings.ToUpper(string(c.Response.Urgency))))
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return nil, err
		}
		writeWrapped(&pdf, c.Response.ResponseText)
		pdf.Br(10)

		if len(c.Response.Recommendations) > 0 {
			pdf.Cell(nil, "Recommendations:")
			pdf.Br(12)
			for _, rec := range c.Response.Recommendations {
				writeWrapped(&pdf, "- "+rec)
			}
			pdf.Br(10)
		}
		if len(c.Response.RedFlags) > 0 {
			pdf.Cell(nil, "Warnings:")
			pdf.Br(12)
			for _, flag := range c.Response.RedFlags {
				writeWrapped(&pdf, "- "+flag)
			}
			pdf.Br(10)
		}
		pdf.Cell(nil, fmt.Sprintf("Model: %s, confidence %.0f%%",
			c.Response.ModelUsed, c.Response.Confidence*100))
		pdf.Br(12)
	}

	pdf.SetY(800)
	if err := pdf.SetFont("DejaVu", "", 9); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "AI-generated assessment. Not a substitute for professional medical advice.")

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// SendEmergencyReport alerts the on-call clinician channel with a summary
// message and the full PDF.
func (s *Service) SendEmergencyReport(ctx context.Context, c *consultation.Consultation) error {
	if s.tgClient == nil || s.doctorChatID == 0 {
		s.logger.Debug("emergency escalation disabled, no telegram channel configured")
		return nil
	}

	alert := fmt.Sprintf("EMERGENCY CONSULTATION %s\nUrgency: %s\nSymptoms: %s\nTime: %s",
		c.ID, c.Response.Urgency, c.Symptoms, time.Now().Format(time.RFC3339))
	if err := s.tgClient.SendMessage(s.doctorChatID, alert); err != nil {
		return err
	}

	pdfBytes, err := s.GeneratePDF(c)
	if err != nil {
		s.logger.Error("emergency PDF generation failed", zap.Error(err))
		// The text alert already went out.
		return nil
	}
	fileName := fmt.Sprintf("report_%s.pdf", c.ID)
	return s.tgClient.SendDocument(s.doctorChatID, pdfBytes, fileName)
}

func writeWrapped(pdf *gopdf.GoPdf, text string) {
	lines, _ := pdf.SplitText(text, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(12)
	}
}
