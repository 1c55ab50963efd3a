package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.deps.PaymentMethods.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]paymentMethodResponse, 0, len(methods))
	for _, pm := range methods {
		out = append(out, newPaymentMethodResponse(pm))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pm, err := s.deps.PaymentMethods.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newPaymentMethodResponse(pm))
}

func (s *Server) handleDeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "methodID"))
	if !ok {
		writeJSON(w, r, http.StatusNotFound, detail("Not found."))
		return
	}
	if err := s.deps.PaymentMethods.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
