package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/log"
	"bilancio/internal/services"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Accounts.Register(r.Context(), services.RegistrationInput{
		Username: req.Username.String(),
		Email:    req.Email.String(),
		Password: req.Password.String(),
		Salary:   req.Salary.String(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		log.FieldUserID, u.ID, log.FieldOperation, log.OpRegister)
	writeJSON(w, r, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.deps.Tokens.Issue(u.ID, u.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claims, err := s.deps.Tokens.Parse(token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, loginResponse{
		Token:     token,
		UserID:    u.ID,
		Username:  u.Username,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	})
}

// handleSetSalary lets a user replace their own salary.
func (s *Server) handleSetSalary(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseID(chi.URLParam(r, "userID"))
	if !ok {
		writeJSON(w, r, http.StatusNotFound, detail("Not found."))
		return
	}
	if userID != callerID(r.Context()) {
		writeJSON(w, r, http.StatusForbidden, detail(msgForbidden))
		return
	}
	var req salaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := s.deps.Accounts.SetSalary(r.Context(), userID, req.Amount.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, salaryResponse{UserID: userID, Amount: amount})
}
