package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"slotbook/internal/confirmation"
	"slotbook/internal/domain"
	"slotbook/internal/models"
)

type bookingResponse struct {
	Batch        *models.BookingBatch  `json:"batch"`
	Confirmation *confirmation.Payload `json:"confirmation"`
	Summary      string                `json:"summary"`
	QRURL        string                `json:"qr_url"`
}

func newBookingResponse(batch *models.BookingBatch) bookingResponse {
	payload := confirmation.Build(batch)
	return bookingResponse{
		Batch:        batch,
		Confirmation: payload,
		Summary:      payload.Summary(),
		QRURL:        fmt.Sprintf("/api/v1/bookings/%s/%s/qr.png", batch.Date, batch.ID),
	}
}

func (s *HTTPServer) handleSports(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sports": s.grounds.Sports(),
		"slots":  models.DailySlots(),
	})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	sport := r.URL.Query().Get("sport")

	slots, err := s.service.DaySlots(r.Context(), date, sport)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"sport": strings.ToLower(strings.TrimSpace(sport)),
		"slots": slots,
	})
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	batch, err := s.service.Book(r.Context(), req)
	if err != nil {
		body := newErrorBody(err)
		if errors.Is(err, domain.ErrConflict) {
			// свежий вид дня, чтобы клиент перерисовал сетку
			if slots, viewErr := s.service.DaySlots(r.Context(), req.Date, req.Sport); viewErr == nil {
				body.Day = slots
			}
		}
		writeJSON(w, statusFor(body.Kind), body)
		return
	}

	writeJSON(w, http.StatusCreated, newBookingResponse(batch))
}

func (s *HTTPServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.GetBatch(r.Context(), r.PathValue("date"), r.PathValue("batch"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookingResponse(batch))
}

func (s *HTTPServer) handleBatchQR(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.GetBatch(r.Context(), r.PathValue("date"), r.PathValue("batch"))
	if err != nil {
		writeError(w, err)
		return
	}

	img, err := confirmation.Image(s.encoder, batch)
	if err != nil {
		s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("encode confirmation")
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", s.encoder.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
