// Package confirmation turns a stored booking batch into the payload handed
// to the customer, as JSON text and as a QR image.
package confirmation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/models"

	"github.com/skip2/go-qrcode"
)

// QR defaults matching the booking widget.
const (
	QRSize  = 228
	QRLevel = qrcode.High
)

type Payload struct {
	Sport       string    `json:"sport"`
	Ground      string    `json:"ground"`
	Date        string    `json:"date"`
	Slots       []string  `json:"slots"`
	Name        string    `json:"name"`
	Mobile      string    `json:"mobile"`
	Address     string    `json:"address,omitempty"`
	BookingTime time.Time `json:"bookingTime"`
	BatchID     string    `json:"batchId"`
	BookingIDs  []string  `json:"bookingIds"`
}

// Build returns nil for a nil or empty batch.
func Build(batch *models.BookingBatch) *Payload {
	if batch == nil || len(batch.Bookings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(batch.Bookings))
	for _, b := range batch.Bookings {
		ids = append(ids, b.ID)
	}
	return &Payload{
		Sport:       batch.Sport,
		Ground:      batch.Ground,
		Date:        batch.Date,
		Slots:       batch.Slots(),
		Name:        batch.Customer.Name,
		Mobile:      batch.Customer.Mobile,
		Address:     batch.Customer.Address,
		BookingTime: batch.CreatedAt.UTC(),
		BatchID:     batch.ID,
		BookingIDs:  ids,
	}
}

// Marshal renders the payload as the text encoded into the QR image.
func (p *Payload) Marshal() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal confirmation: %w", err)
	}
	return string(raw), nil
}

// Summary is the human readable confirmation.
func (p *Payload) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sport: %s\n", p.Sport)
	fmt.Fprintf(&sb, "Date: %s\n", p.Date)
	fmt.Fprintf(&sb, "Slots: %s\n", strings.Join(p.Slots, ", "))
	fmt.Fprintf(&sb, "Name: %s\n", p.Name)
	fmt.Fprintf(&sb, "Mobile: %s\n", p.Mobile)
	if p.Address != "" {
		fmt.Fprintf(&sb, "Address: %s\n", p.Address)
	}
	fmt.Fprintf(&sb, "Reference: %s", p.BatchID)
	return sb.String()
}

// Encoder turns text into an image.
type Encoder interface {
	Encode(text string) ([]byte, error)
	ContentType() string
}

// QREncoder renders PNG QR codes.
type QREncoder struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewQREncoder() *QREncoder {
	return &QREncoder{Size: QRSize, Level: QRLevel}
}

func (e *QREncoder) Encode(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	png, err := qrcode.Encode(text, e.Level, e.Size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

func (e *QREncoder) ContentType() string {
	return "image/png"
}

// Image builds the payload image for batch with enc.
func Image(enc Encoder, batch *models.BookingBatch) ([]byte, error) {
	p := Build(batch)
	if p == nil {
		return nil, fmt.Errorf("empty booking batch")
	}
	text, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	return enc.Encode(text)
}
