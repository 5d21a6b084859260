package server

import (
	"net/http"

	"laju/internal/session"
	"laju/internal/shipment"
)

type dashboardResponse struct {
	Operator      session.Operator `json:"operator"`
	DraftResi     string           `json:"draft_resi,omitempty"`
	Metrics       shipment.Metrics `json:"metrics"`
	IncomeDisplay string           `json:"income_display"`
}

// handleDashboard reports metrics over the active shipments.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	records, err := s.Shipments.ListActiveShipments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionFrom(r.Context())
	m := shipment.ComputeMetrics(records)
	writeJSON(w, http.StatusOK, dashboardResponse{
		Operator:      sess.Operator,
		DraftResi:     sess.DraftResi,
		Metrics:       m,
		IncomeDisplay: m.Income.String(),
	})
}

func (s *Server) handleActiveShipments(w http.ResponseWriter, r *http.Request) {
	records, err := s.Shipments.ListActiveShipments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []shipment.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": records})
}

// handleArchivedShipments lists delivered shipments, the Arsip view.
func (s *Server) handleArchivedShipments(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.Shipments.(shipment.ArchiveLister)
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "not_found", "archive not kept by this store")
		return
	}
	records, err := lister.ListArchivedShipments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []shipment.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": records})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_transit delivered"`
}

// handleUpdateStatus records hand-over progress after the label is printed.
// The store refuses steps from unprinted shipments. Delivered shipments leave
// the active list.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resi := resiParam(r)
	status := shipment.ParseStatus(req.Status)
	if err := s.Shipments.UpdateStatus(r.Context(), resi, status, s.Now()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Drafts.Delete(resi)
	writeJSON(w, http.StatusOK, map[string]string{"resi": resi, "status": string(status)})
}
