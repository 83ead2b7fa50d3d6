package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"slotbook/internal/export"
	"slotbook/internal/models"
)

type slotRequest struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleAdminSlots(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.AdminDay(r.Context(), strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req models.CancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.service.Cancel(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCancelByID(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.CancelByID(r.Context(), r.PathValue("date"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleToggleBlock(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	state, err := s.service.ToggleBlock(r.Context(), req.Date, req.Slot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	state, err := s.service.Block(r.Context(), req.Date, req.Slot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleUnblock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, err := s.service.Unblock(r.Context(), q.Get("date"), q.Get("slot"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))

	ledger, err := s.service.ExportRange(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	// диапазон уже проверен сервисом
	start, _ := models.ParseDate(from)
	end, _ := models.ParseDate(to)

	var buf bytes.Buffer
	if err := export.Write(&buf, ledger, start, end); err != nil {
		s.logger.Error().Err(err).Str("from", from).Str("to", to).Msg("export workbook")
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"bookings_%s_%s.xlsx\"", from, to))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
