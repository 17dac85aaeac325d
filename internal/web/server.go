// Package web exposes the booking API and the small operator UI. Handlers
// validate and persist; all timing decisions stay in the scheduler and the
// window policy.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/example/slot-scheduler/internal/auth"
	"github.com/example/slot-scheduler/internal/booking"
	"github.com/example/slot-scheduler/internal/db"
)

//go:embed static/*
var staticFS embed.FS

// BookingStore is the slice of the Request Store the web layer needs.
type BookingStore interface {
	Create(ctx context.Context, b booking.Booking) error
	Get(ctx context.Context, id string) (booking.Booking, error)
	List(ctx context.Context) ([]booking.Booking, error)
	Update(ctx context.Context, b booking.Booking) error
	SlotConfirmed(ctx context.Context, f booking.Facility, date, hhmm string) (bool, error)
}

// Scheduler is what the handlers drive when bookings appear or change.
type Scheduler interface {
	Schedule(b booking.Booking)
	Cancel(id string)
	Reschedule(b booking.Booking)
}

type Server struct {
	Auth     *auth.Store
	Bookings BookingStore
	Sched    Scheduler
	Window   booking.Window
	Loc      *time.Location
	Log      *slog.Logger

	// Now is the clock, injectable for tests. Nil means time.Now.
	Now func() time.Time

	validate *validator.Validate
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) Routes() http.Handler {
	s.validate = validator.New()

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(s.Auth.RequireAuth)
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Post("/bulk", s.handleCreateBulk)
		r.Put("/{id}", s.handleUpdate)
	})

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/*", http.FileServer(http.FS(static)))

	return r
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.error(w, http.StatusUnauthorized, "invalid username/password")
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		s.error(w, http.StatusInternalServerError, "session error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.Auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	bs, err := s.Bookings.List(r.Context())
	if err != nil {
		s.Log.Error("list bookings", "err", err)
		s.error(w, http.StatusInternalServerError, "failed to read bookings")
		return
	}
	if bs == nil {
		bs = []booking.Booking{}
	}
	s.json(w, http.StatusOK, bs)
}

type createRequest struct {
	Facility    string `json:"facility" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	Description string `json:"description"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}

	b := booking.Booking{
		ID:          booking.NewID(),
		Facility:    booking.Facility(req.Facility),
		Date:        req.Date,
		Time:        req.Time,
		Status:      booking.StatusPending,
		Description: req.Description,
	}
	if err := b.Validate(); err != nil {
		s.error(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.prepareSlot(w, r, &b) {
		return
	}

	if err := s.Bookings.Create(r.Context(), b); err != nil {
		s.Log.Error("create booking", "err", err)
		s.error(w, http.StatusInternalServerError, "failed to create booking")
		return
	}
	s.Sched.Schedule(b)
	s.json(w, http.StatusCreated, b)
}

type bulkRequest struct {
	Facility    string `json:"facility" validate:"required"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Weekdays    []int  `json:"weekdays" validate:"required,min=1,dive,min=0,max=6"`
	Description string `json:"description"`
}

// handleCreateBulk expands a recurring-range submission into one independent
// booking per matching date, sharing a bulkId used only for display grouping.
func (s *Server) handleCreateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !s.decode(w, r, &req) {
		return
	}

	f := booking.Facility(req.Facility)
	if !f.Valid() || !booking.ValidSlot(f, req.Time) {
		s.error(w, http.StatusBadRequest, fmt.Sprintf("no %s slot at %s", req.Facility, req.Time))
		return
	}

	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, d := range req.Weekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}
	dates := booking.ExpandRange(req.StartDate, req.EndDate, weekdays)
	if len(dates) == 0 {
		s.error(w, http.StatusBadRequest, "no dates match the selected weekdays and range")
		return
	}

	created := make([]booking.Booking, 0, len(dates))
	for _, b := range booking.ExpandBulk(f, req.Time, dates, req.Description) {
		slot, err := b.SlotAt(s.Loc)
		if err != nil || !s.now().Before(slot) {
			continue // past dates in the range are silently skipped
		}
		if taken, err := s.Bookings.SlotConfirmed(r.Context(), b.Facility, b.Date, b.Time); err != nil || taken {
			continue
		}
		b.Immediate = !s.now().Before(s.Window.OpensAt(slot))
		if err := s.Bookings.Create(r.Context(), b); err != nil {
			s.Log.Error("create bulk booking", "date", b.Date, "err", err)
			continue
		}
		s.Sched.Schedule(b)
		created = append(created, b)
	}
	if len(created) == 0 {
		s.error(w, http.StatusBadRequest, "no bookable dates in range")
		return
	}
	s.json(w, http.StatusCreated, created)
}

type updateRequest struct {
	Facility    *string `json:"facility"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Description *string `json:"description"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.Bookings.Get(r.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			s.error(w, http.StatusNotFound, "booking not found")
			return
		}
		s.Log.Error("get booking", "booking", id, "err", err)
		s.error(w, http.StatusInternalServerError, "failed to read booking")
		return
	}
	if b.Status != booking.StatusPending {
		s.error(w, http.StatusConflict, "only pending bookings can be edited")
		return
	}

	var req updateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Facility != nil {
		b.Facility = booking.Facility(*req.Facility)
	}
	if req.Date != nil {
		b.Date = *req.Date
	}
	if req.Time != nil {
		b.Time = *req.Time
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if err := b.Validate(); err != nil {
		s.error(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.prepareSlot(w, r, &b) {
		return
	}

	// Old timer first: the edited slot must never fire under the old trigger.
	s.Sched.Cancel(b.ID)
	if err := s.Bookings.Update(r.Context(), b); err != nil {
		if db.IsNotFound(err) {
			s.error(w, http.StatusConflict, "booking was resolved concurrently")
			return
		}
		s.Log.Error("update booking", "booking", id, "err", err)
		s.error(w, http.StatusInternalServerError, "failed to update booking")
		return
	}
	s.Sched.Schedule(b)
	s.json(w, http.StatusOK, b)
}

// prepareSlot rejects past or already-claimed slots and sets the immediate
// flag when the opening window has already begun.
func (s *Server) prepareSlot(w http.ResponseWriter, r *http.Request, b *booking.Booking) bool {
	slot, err := b.SlotAt(s.Loc)
	if err != nil {
		s.error(w, http.StatusBadRequest, err.Error())
		return false
	}
	now := s.now()
	if !now.Before(slot) {
		s.error(w, http.StatusBadRequest, "slot start has already passed")
		return false
	}
	taken, err := s.Bookings.SlotConfirmed(r.Context(), b.Facility, b.Date, b.Time)
	if err != nil {
		s.Log.Error("duplicate check", "err", err)
		s.error(w, http.StatusInternalServerError, "failed to check slot")
		return false
	}
	if taken {
		s.error(w, http.StatusConflict, "slot already booked")
		return false
	}
	b.Immediate = !now.Before(s.Window.OpensAt(slot))
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) && len(verr) > 0 {
			s.error(w, http.StatusBadRequest, fmt.Sprintf("invalid field %s", verr[0].Field()))
			return false
		}
		s.error(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) error(w http.ResponseWriter, code int, msg string) {
	s.json(w, code, map[string]string{"error": msg})
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}
