package api

import (
	"fmt"
	"net/http"
	"strings"

	"tablequeue/internal/export"
	"tablequeue/internal/models"
	"tablequeue/internal/service"
)

func (s *HTTPServer) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req service.AdmitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q, err := s.svc.Queues.Admit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *HTTPServer) handleListQueues(w http.ResponseWriter, r *http.Request) {
	filter := models.QueueFilter{}
	if st := strings.TrimSpace(r.URL.Query().Get("status")); st != "" {
		filter.Statuses = strings.Split(st, ",")
	}
	s.writeQueues(w, r, filter)
}

func (s *HTTPServer) handleListQueuesByShop(w http.ResponseWriter, r *http.Request) {
	s.writeQueues(w, r, models.QueueFilter{
		ShopID:      r.PathValue("shopId"),
		TableTypeID: r.URL.Query().Get("table_type_id"),
	})
}

func (s *HTTPServer) handleListQueuesByCustomer(w http.ResponseWriter, r *http.Request) {
	s.writeQueues(w, r, models.QueueFilter{CustomerID: r.PathValue("customerId")})
}

func (s *HTTPServer) writeQueues(w http.ResponseWriter, r *http.Request, filter models.QueueFilter) {
	list, err := s.svc.Queues.ListQueues(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Queue{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	q, err := s.svc.Queues.GetQueue(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *HTTPServer) handleCheckNearby(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Queues.CheckNearby(r.Context(), r.PathValue("shopId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleNotifyShop(w http.ResponseWriter, r *http.Request) {
	shopID := r.PathValue("shopId")
	if err := s.svc.Queues.NotifyShop(r.Context(), shopID, r.URL.Query().Get("table_type_id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *HTTPServer) handleConfirmQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QueueID string `json:"queue_id"`
		QueueQR string `json:"queue_qr"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q, err := s.svc.Queues.ConfirmQR(r.Context(), req.QueueID, req.QueueQR)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *HTTPServer) handleAssignTable(w http.ResponseWriter, r *http.Request) {
	var req service.AssignTableRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q, err := s.svc.Queues.AssignTable(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *HTTPServer) handleFreeTable(w http.ResponseWriter, r *http.Request) {
	var req service.FreeTableRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	promoted, err := s.svc.Queues.FreeTable(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated_queue": promoted})
}

func (s *HTTPServer) handleTableStatus(w http.ResponseWriter, r *http.Request) {
	tables, err := s.svc.Queues.GetTableStatus(r.Context(), r.PathValue("shopId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if tables == nil {
		tables = []*models.TableStatus{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.Queues.ListHistory(r.Context(), r.PathValue("shopId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if history == nil {
		history = []*models.QueueHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *HTTPServer) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	shopID := r.PathValue("shopId")
	history, err := s.svc.Queues.ListHistory(r.Context(), shopID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	tableTypes, err := s.svc.Catalog.ListTableTypes(r.Context(), shopID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	data, err := export.QueueHistoryXLSX(history, tableTypes, s.svc.Location)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="queue_history_%s.xlsx"`, shopID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
