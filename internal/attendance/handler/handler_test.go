package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchd/internal/attendance/service"
	"punchd/internal/attendance/store"
	"punchd/internal/geo"
	"punchd/internal/identity"
	httpapi "punchd/internal/transport/http"
	"punchd/pkg/requestcontext"
)

type apiFixture struct {
	router   http.Handler
	store    *store.MemoryStore
	identity *identity.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	idService, err := identity.New([]byte("test-signing-key"), identity.WithLogger(log))
	require.NoError(t, err)

	st := store.NewMemory()
	svc, err := service.New(st, geo.NewValidator(geo.NewMemorySettings()),
		httpapi.ReportBiometric{}, httpapi.ReportLocation{},
		service.WithLogger(log))
	require.NoError(t, err)

	return &apiFixture{
		router:   httpapi.NewRouter(log, idService, New(svc, log)),
		store:    st,
		identity: idService,
	}
}

func (f *apiFixture) token(t *testing.T, sess requestcontext.OwnerSession) string {
	t.Helper()
	token, err := f.identity.IssueToken(httptest.NewRequest(http.MethodGet, "/", nil).Context(), sess)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func grantedDevice() map[string]any {
	return map[string]any{
		"biometric":  "granted",
		"permission": "authorized",
		"latitude":   geo.DefaultLatitude,
		"longitude":  geo.DefaultLongitude,
	}
}

func TestCheckInEndpoint(t *testing.T) {
	t.Run("happy path returns the persisted record", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		rec := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
			map[string]any{"device": grantedDevice()})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Record struct {
				Status      string     `json:"status"`
				CheckInTime *time.Time `json:"check_in_time"`
				Latitude    *float64   `json:"latitude"`
			} `json:"record"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "checked_in", resp.Record.Status)
		require.NotNil(t, resp.Record.CheckInTime)
		require.NotNil(t, resp.Record.Latitude)
		assert.InDelta(t, geo.DefaultLatitude, *resp.Record.Latitude, 1e-9)
	})

	t.Run("declined biometric returns declined, not an error", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		device := grantedDevice()
		device["biometric"] = "declined"
		rec := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
			map[string]any{"device": device})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"declined":true}`, rec.Body.String())
	})

	t.Run("outside the office is 422 with the distance", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		device := grantedDevice()
		device["latitude"] = geo.DefaultLatitude + 0.045
		rec := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
			map[string]any{"device": device})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp struct {
			Error          string   `json:"error"`
			DistanceMeters *float64 `json:"distance_meters"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "out_of_range", resp.Error)
		require.NotNil(t, resp.DistanceMeters)
		assert.Greater(t, *resp.DistanceMeters, 1000.0)
	})

	t.Run("denied location permission is 401", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		device := grantedDevice()
		device["permission"] = "denied"
		rec := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
			map[string]any{"device": device})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("guest over the record limit is 403", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "guest-1", Anonymous: true})

		now := time.Now()
		for day := 1; day <= 2; day++ {
			past := now.AddDate(0, 0, -day)
			ctx := requestcontext.WithTime(httptest.NewRequest(http.MethodGet, "/", nil).Context(), past)
			_, err := f.store.CheckIn(ctx, "guest-1", past, false, geo.DefaultLatitude, geo.DefaultLongitude)
			require.NoError(t, err)
		}

		rec := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
			map[string]any{"device": grantedDevice()})
		require.Equal(t, http.StatusForbidden, rec.Code)

		var resp struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "quota_exceeded", resp.Error)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		req := httptest.NewRequest(http.MethodPost, "/v1/attendance/check-in",
			bytes.NewBufferString("{not json"))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCheckOutEndpoint(t *testing.T) {
	t.Run("without a check-in is 404", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		rec := f.do(t, http.MethodPost, "/v1/attendance/check-out", token,
			map[string]any{"device": grantedDevice()})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("completes the day", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		rec := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
			map[string]any{"device": grantedDevice()})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodPost, "/v1/attendance/check-out", token,
			map[string]any{"device": grantedDevice()})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Record struct {
				Status        string   `json:"status"`
				WorkedSeconds *float64 `json:"worked_seconds"`
			} `json:"record"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "complete", resp.Record.Status)
		assert.NotNil(t, resp.Record.WorkedSeconds)
	})
}

func TestTodayEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

	rec := f.do(t, http.MethodGet, "/v1/attendance/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String(), "no record yet means an empty response")

	f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
		map[string]any{"device": grantedDevice()})

	rec = f.do(t, http.MethodGet, "/v1/attendance/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"checked_in"`)
}

func TestHistoryEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

	t.Run("rejects missing range parameters", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/attendance/history", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns records in range", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
			map[string]any{"device": grantedDevice()})
		require.Equal(t, http.StatusOK, resp.Code)

		today := time.Now().Format("2006-01-02")
		rec := f.do(t, http.MethodGet,
			fmt.Sprintf("/v1/attendance/history?start=%s&end=%s", today, today), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Records []json.RawMessage `json:"records"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Records, 1)
	})
}

func TestAddPastRecordEndpoint(t *testing.T) {
	t.Run("creates a hand-entered record for a past day", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		pastDay := time.Now().AddDate(0, 0, -7)
		in := time.Date(pastDay.Year(), pastDay.Month(), pastDay.Day(), 9, 0, 0, 0, time.Local)
		out := in.Add(8 * time.Hour)
		rec := f.do(t, http.MethodPost, "/v1/attendance/records", token, map[string]any{
			"day":            pastDay.Format("2006-01-02"),
			"check_in_time":  in,
			"check_out_time": out,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Record struct {
				Day            string `json:"day"`
				Status         string `json:"status"`
				CheckInManual  bool   `json:"check_in_manual"`
				CheckOutManual bool   `json:"check_out_manual"`
			} `json:"record"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, pastDay.Format("2006-01-02"), resp.Record.Day)
		assert.Equal(t, "complete", resp.Record.Status)
		assert.True(t, resp.Record.CheckInManual)
		assert.True(t, resp.Record.CheckOutManual)

		day := pastDay.Format("2006-01-02")
		hist := f.do(t, http.MethodGet,
			fmt.Sprintf("/v1/attendance/history?start=%s&end=%s", day, day), token, nil)
		require.Equal(t, http.StatusOK, hist.Code)
		var body struct {
			Records []json.RawMessage `json:"records"`
		}
		require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &body))
		assert.Len(t, body.Records, 1)
	})

	t.Run("rejects a malformed day", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		rec := f.do(t, http.MethodPost, "/v1/attendance/records", token, map[string]any{
			"day": "yesterday",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an entry with no times", func(t *testing.T) {
		f := newAPIFixture(t)
		token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

		rec := f.do(t, http.MethodPost, "/v1/attendance/records", token, map[string]any{
			"day": time.Now().AddDate(0, 0, -1).Format("2006-01-02"),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWeeklyStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

	rec := f.do(t, http.MethodGet, "/v1/attendance/stats/weekly", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Days []struct {
			Date    string  `json:"date"`
			Hours   float64 `json:"hours"`
			Weekday string  `json:"weekday"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Days, 7, "the weekly view always spans seven days")
	assert.Equal(t, time.Now().Format("2006-01-02"), body.Days[6].Date, "newest day last")
}

func TestSessionMiddleware(t *testing.T) {
	t.Run("invalid bearer token is rejected", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodGet, "/v1/attendance/today", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token proceeds as guest", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodGet, "/v1/attendance/today", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestDeleteAllEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, requestcontext.OwnerSession{OwnerID: "owner-1"})

	resp := f.do(t, http.MethodPost, "/v1/attendance/check-in", token,
		map[string]any{"device": grantedDevice()})
	require.Equal(t, http.StatusOK, resp.Code)

	rec := f.do(t, http.MethodDelete, "/v1/attendance", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/attendance/today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}
