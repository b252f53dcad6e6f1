package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/NordCoder/Alertus/internal/alerting"
	"github.com/NordCoder/Alertus/internal/channel"
	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/domain/preference"
	"github.com/NordCoder/Alertus/internal/domain/user"
	"github.com/NordCoder/Alertus/internal/obs"
	"github.com/NordCoder/Alertus/internal/reminder"
	"github.com/NordCoder/Alertus/internal/services/api-gateway/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InboxReader serves the in-app inbox; nil disables the inbox route.
type InboxReader interface {
	Recent(ctx context.Context, userID int64, limit int) ([]channel.InboxItem, error)
}

type Server struct {
	log   *zap.Logger
	svc   *alerting.Service
	inbox InboxReader
}

func NewServer(log *zap.Logger, svc *alerting.Service, inbox InboxReader) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log.With(zap.String("component", "http.alerts")), svc: svc, inbox: inbox}
}

// Routes mounts the admin and user alert endpoints. Callers wrap it with
// the authentication middleware.
func (s *Server) Routes(r chi.Router) {
	r.Route("/admin/alerts", func(r chi.Router) {
		r.Post("/", s.createAlert)
		r.Get("/", s.listAlerts)
		r.Post("/trigger-reminders", s.triggerReminders)
		r.Put("/{id}", s.updateAlert)
		r.Delete("/{id}", s.archiveAlert)
		r.Get("/{id}/deliveries", s.listDeliveries)
	})
	r.Route("/user", func(r chi.Router) {
		r.Get("/alerts", s.listUserAlerts)
		r.Post("/alerts/{id}/read", s.markRead)
		r.Post("/alerts/{id}/snooze", s.snooze)
		if s.inbox != nil {
			r.Get("/inbox", s.userInbox)
		}
	})
}

func (s *Server) createAlert(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	var req createAlertRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.svc.Create(r.Context(), actor, req.toAlert())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) updateAlert(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateAlertRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.svc.Update(r.Context(), actor, id, req.toPatch())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) archiveAlert(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.svc.Archive(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	f, err := parseFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.svc.List(r.Context(), actor, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*alert.Alert{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) listDeliveries(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.svc.Deliveries(r.Context(), actor, id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) triggerReminders(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	rep, err := s.svc.TriggerReminders(r.Context(), actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSweepResponse(rep))
}

func (s *Server) listUserAlerts(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	list, err := s.svc.ListForUser(r.Context(), actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.svc.MarkRead(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) snooze(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body: " + err.Error()})
		return
	}
	p, err := s.svc.Snooze(r.Context(), actor, id, req.Until)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) userInbox(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.inbox.Recent(r.Context(), actor.UserID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func mustActor(r *http.Request) user.Actor {
	a, _ := auth.ActorFromCtx(r.Context())
	return a
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid alert id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body: " + err.Error()})
		return false
	}
	return true
}

func parseFilter(r *http.Request) (alert.Filter, error) {
	var f alert.Filter
	q := r.URL.Query()
	if v := q.Get("severity"); v != "" {
		s := alert.Severity(v)
		if !s.Valid() {
			return f, errors.Join(alert.ErrValidation, errors.New("unknown severity "+v))
		}
		f.Severity = &s
	}
	if v := q.Get("visibility"); v != "" {
		vis := alert.Visibility(v)
		if !vis.Valid() {
			return f, errors.Join(alert.ErrValidation, errors.New("unknown visibility "+v))
		}
		f.Visibility = &vis
	}
	if v := q.Get("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.Join(alert.ErrValidation, errors.New("is_active must be a boolean"))
		}
		f.Active = &b
	}
	return f, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, alert.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, alert.ErrNotFound), errors.Is(err, preference.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, alert.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, alert.ErrArchived), errors.Is(err, reminder.ErrSweepInProgress):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		obs.WithTrace(r.Context(), s.log).Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
