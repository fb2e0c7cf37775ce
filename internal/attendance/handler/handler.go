// Package handler is the thin HTTP layer over the attendance service. It
// decodes requests, delegates to the gate chain, and renders value
// snapshots; business rules stay in the service.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"punchd/internal/attendance/models"
	"punchd/internal/attendance/service"
	httpapi "punchd/internal/transport/http"
	pkgerrors "punchd/pkg/errors"
	"punchd/pkg/requestcontext"
)

const dayLayout = "2006-01-02"

// Handler handles the attendance endpoints.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
	loc     *time.Location
}

// Option configures a Handler.
type Option func(*Handler)

// WithLocation sets the time zone used to parse day parameters. It must match
// the zone the service truncates calendar days in.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.loc = loc
		}
	}
}

// New creates an attendance Handler.
func New(svc *service.Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: svc, logger: logger, loc: time.Local}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the attendance routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/attendance/check-in", h.handleCheckIn)
	r.Post("/attendance/check-out", h.handleCheckOut)
	r.Get("/attendance/today", h.handleToday)
	r.Get("/attendance/history", h.handleHistory)
	r.Get("/attendance/stats/weekly", h.handleWeeklyStats)
	r.Get("/attendance/stats/monthly", h.handleMonthlySummary)
	r.Post("/attendance/records", h.handleAddPastRecord)
	r.Patch("/attendance/records/{id}/time", h.handleUpdateTime)
	r.Delete("/attendance/records/{id}", h.handleDeleteRecord)
	r.Delete("/attendance", h.handleDeleteAll)
}

type recordResponse struct {
	ID             string     `json:"id"`
	Day            string     `json:"day"`
	Status         string     `json:"status"`
	CheckInTime    *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime   *time.Time `json:"check_out_time,omitempty"`
	CheckInManual  bool       `json:"check_in_manual"`
	CheckOutManual bool       `json:"check_out_manual"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	WorkedSeconds  *float64   `json:"worked_seconds,omitempty"`
}

func toRecordResponse(rec models.Record) recordResponse {
	resp := recordResponse{
		ID:             rec.ID.String(),
		Day:            rec.Day.Format(dayLayout),
		Status:         string(rec.Status()),
		CheckInTime:    rec.CheckInTime,
		CheckOutTime:   rec.CheckOutTime,
		CheckInManual:  rec.CheckInManual,
		CheckOutManual: rec.CheckOutManual,
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
	}
	if d, defined := rec.WorkDuration(); defined {
		seconds := d.Seconds()
		resp.WorkedSeconds = &seconds
	}
	return resp
}

type attemptRequest struct {
	Time   *time.Time           `json:"time"`
	Manual bool                 `json:"manual"`
	Device httpapi.DeviceReport `json:"device"`
}

type attemptResponse struct {
	Declined bool            `json:"declined,omitempty"`
	Record   *recordResponse `json:"record,omitempty"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	ctx = httpapi.WithDeviceReport(ctx, req.Device)

	t := requestcontext.Now(ctx)
	if req.Time != nil {
		t = *req.Time
	}

	result, err := h.service.CheckIn(ctx, t, req.Manual)
	if err != nil {
		h.logger.WarnContext(ctx, "check-in aborted",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httpapi.WriteError(w, err)
		return
	}
	if result.Declined {
		httpapi.WriteJSON(w, http.StatusOK, attemptResponse{Declined: true})
		return
	}
	resp := toRecordResponse(result.Record)
	httpapi.WriteJSON(w, http.StatusOK, attemptResponse{Record: &resp})
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	ctx = httpapi.WithDeviceReport(ctx, req.Device)

	t := requestcontext.Now(ctx)
	if req.Time != nil {
		t = *req.Time
	}

	result, err := h.service.CheckOut(ctx, t, req.Manual)
	if err != nil {
		h.logger.WarnContext(ctx, "check-out aborted",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httpapi.WriteError(w, err)
		return
	}
	if result.Declined {
		httpapi.WriteJSON(w, http.StatusOK, attemptResponse{Declined: true})
		return
	}
	resp := toRecordResponse(result.Record)
	httpapi.WriteJSON(w, http.StatusOK, attemptResponse{Record: &resp})
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Today(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	if rec == nil {
		httpapi.WriteJSON(w, http.StatusOK, attemptResponse{})
		return
	}
	resp := toRecordResponse(*rec)
	httpapi.WriteJSON(w, http.StatusOK, attemptResponse{Record: &resp})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	start, err := time.ParseInLocation(dayLayout, r.URL.Query().Get("start"), h.loc)
	if err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "start must be YYYY-MM-DD"))
		return
	}
	end, err := time.ParseInLocation(dayLayout, r.URL.Query().Get("end"), h.loc)
	if err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "end must be YYYY-MM-DD"))
		return
	}

	records, err := h.service.History(r.Context(), start, end)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"records": out})
}

type dailyStatResponse struct {
	Date    string  `json:"date"`
	Hours   float64 `json:"hours"`
	Weekday string  `json:"weekday"`
}

func (h *Handler) handleWeeklyStats(w http.ResponseWriter, r *http.Request) {
	statsOut, err := h.service.WeeklyStats(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	out := make([]dailyStatResponse, 0, len(statsOut))
	for _, s := range statsOut {
		out = append(out, dailyStatResponse{
			Date:    s.Date.Format(dayLayout),
			Hours:   s.Hours,
			Weekday: s.Weekday,
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"days": out})
}

func (h *Handler) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	month := requestcontext.Now(r.Context())
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01", raw, h.loc)
		if err != nil {
			httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "month must be YYYY-MM"))
			return
		}
		month = parsed
	}

	summary, err := h.service.MonthlySummary(r.Context(), month)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	records := make([]recordResponse, 0, len(summary.Records))
	for _, rec := range summary.Records {
		records = append(records, toRecordResponse(rec))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"complete_days":      summary.CompleteDays,
		"total_seconds":      summary.TotalWorked.Seconds(),
		"average_work_hours": summary.AverageWorkHours,
		"records":            records,
	})
}

type pastRecordRequest struct {
	Day          string     `json:"day"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
}

func (h *Handler) handleAddPastRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req pastRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	day, err := time.ParseInLocation(dayLayout, req.Day, h.loc)
	if err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "day must be YYYY-MM-DD"))
		return
	}

	rec, err := h.service.AddPastRecord(ctx, day, req.CheckInTime, req.CheckOutTime)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	resp := toRecordResponse(rec)
	httpapi.WriteJSON(w, http.StatusCreated, attemptResponse{Record: &resp})
}

type updateTimeRequest struct {
	Day          string     `json:"day"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
}

func (h *Handler) handleUpdateTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid record id"))
		return
	}
	var req updateTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	day, err := time.ParseInLocation(dayLayout, req.Day, h.loc)
	if err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "day must be YYYY-MM-DD"))
		return
	}

	sess, _ := requestcontext.Session(ctx)
	rec := models.Record{ID: recordID, OwnerID: sess.OwnerID, Day: day}

	updated, err := h.service.UpdateTime(ctx, rec, req.CheckInTime, req.CheckOutTime)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	resp := toRecordResponse(updated)
	httpapi.WriteJSON(w, http.StatusOK, attemptResponse{Record: &resp})
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid record id"))
		return
	}
	day, err := time.ParseInLocation(dayLayout, r.URL.Query().Get("day"), h.loc)
	if err != nil {
		httpapi.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "day must be YYYY-MM-DD"))
		return
	}

	sess, _ := requestcontext.Session(ctx)
	if err := h.service.Delete(ctx, models.Record{ID: recordID, OwnerID: sess.OwnerID, Day: day}); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAll(r.Context()); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
