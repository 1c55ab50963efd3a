package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/log"
	"bilancio/internal/services"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor, err := s.actingUser(r, req.UserID.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	conf, err := s.deps.Budget.RecordExpense(r.Context(), actor, services.ExpenseInput{
		Amount:        req.Amount.String(),
		Category:      req.Category.String(),
		PaymentMethod: req.PaymentMethod.String(),
		ExpenseDate:   req.ExpenseDate.String(),
		Attachment:    req.Attachment.String(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense recorded",
		log.FieldExpenseID, conf.ExpenseID,
		log.FieldUserID, actor.ID,
		log.FieldCategory, conf.Category,
		log.FieldOperation, log.OpRecord)
	writeJSON(w, r, http.StatusCreated, newConfirmationResponse(conf))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actingUser(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := s.deps.Views.ListExpenses(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newExpenseResponse(v))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "expenseID"))
	if !ok {
		writeJSON(w, r, http.StatusNotFound, detail("Not found."))
		return
	}
	actor, err := s.actingUser(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.deps.Views.GetExpense(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newExpenseResponse(view))
}
