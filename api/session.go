package api

import (
	"errors"
	"net/http"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/billbatista/acasinha-chores/eventlogger"
	"github.com/billbatista/acasinha-chores/middleware"
	"github.com/billbatista/acasinha-chores/session"
	"github.com/billbatista/acasinha-chores/user"
	"github.com/google/uuid"
)

// startSession signs in the user the kiosk recognized. Users with a PIN
// must confirm it.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		PIN    string    `json:"pin"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.Users.GetByID(ctx, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u == nil {
		writeError(w, r, user.ErrWrongPIN)
		return
	}
	if u.HasPIN() {
		if err := s.Users.VerifyPIN(u.PINHash, req.PIN); err != nil {
			writeError(w, r, err)
			return
		}
	}

	// one kiosk session per user
	if err := s.Sessions.DeleteByUserID(ctx, u.ID); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.Sessions.Create(ctx, u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess)

	s.log(r.WithContext(middleware.WithUserID(ctx, u.ID)), eventlogger.TypeSessionStarted, map[string]string{
		"user_id":    u.ID.String(),
		"session_id": sess.ID.String(),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "session": sess})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err == nil {
		if err := s.Sessions.Delete(r.Context(), cookie.Value); err != nil {
			writeError(w, r, err)
			return
		}
	}
	clearSessionCookie(w)

	if id, ok := middleware.GetUserID(r.Context()); ok {
		s.log(r, eventlogger.TypeSessionEnded, map[string]string{"user_id": id.String()})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetUserID(r.Context())
	u, err := s.Users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u == nil {
		writeError(w, r, apperr.NotFound("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

const defaultActivityLimit = 50

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	if s.ActivityLog == nil {
		writeError(w, r, errors.New("activity log unavailable"))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	events, err := s.ActivityLog.GetByType(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
