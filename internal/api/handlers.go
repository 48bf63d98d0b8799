package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/star/closeapproach/internal/cad"
	"github.com/star/closeapproach/internal/chart"
	"github.com/star/closeapproach/internal/export"
	"github.com/star/closeapproach/internal/httputil"
	"github.com/star/closeapproach/internal/metrics"
	"github.com/star/closeapproach/internal/session"
)

// SessionCookie names the cookie carrying the dashboard session ID.
const SessionCookie = "cad_session"

// RowTimeLayout formats close-approach times in JSON responses.
const RowTimeLayout = "2006-01-02 15:04"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"error": code, "detail": detail})
}

// session returns the caller's session for a search, creating one and
// setting the cookie when the request carries no valid ID. It must run
// before the response header is written.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess := s.sessions.GetOrCreate(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

type bodyOption struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type optionsResponse struct {
	Bodies        []bodyOption        `json:"bodies"`
	Units         []cad.Unit          `json:"units"`
	ObjectTypes   []cad.ObjectType    `json:"object_types"`
	Defaults      map[string]string   `json:"defaults"`
	UnitDistances map[cad.Unit]string `json:"unit_distances"`
	MaxLimit      int                 `json:"max_limit"`
	MaxOffsetDays int                 `json:"max_offset_days"`
	TrendLine     bool                `json:"trend_line"`
	TrendReason   string              `json:"trend_reason,omitempty"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	def := cad.DefaultQuery()
	resp := optionsResponse{
		Units:       cad.Units,
		ObjectTypes: cad.ObjectTypes,
		Defaults: map[string]string{
			"body":     def.Body.Code,
			"date-min": def.DateMin,
			"days":     strconv.Itoa(cad.DefaultDays),
			"dist-max": def.MaxDistance,
			"unit":     string(def.Unit),
			"limit":    strconv.Itoa(def.Limit),
			"type":     string(def.ObjectType),
		},
		UnitDistances: make(map[cad.Unit]string, len(cad.Units)),
		MaxLimit:      cad.MaxLimit,
		MaxOffsetDays: cad.MaxOffsetDays,
		TrendLine:     s.cfg.Trend.Enabled,
		TrendReason:   s.cfg.Trend.Reason,
	}
	for _, b := range cad.Bodies {
		resp.Bodies = append(resp.Bodies, bodyOption{Name: b.Name, Code: b.Code})
	}
	for _, u := range cad.Units {
		resp.UnitDistances[u] = cad.DefaultMaxDistance(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// rowJSON is the wire form of one row; missing values are null.
type rowJSON struct {
	Designation string              `json:"des"`
	Date        *string             `json:"cd"`
	Distance    decimal.NullDecimal `json:"dist"`
	VRel        decimal.NullDecimal `json:"v_rel"`
	VInf        decimal.NullDecimal `json:"v_inf"`
}

type approachesResponse struct {
	Count     int       `json:"count"`
	Empty     bool      `json:"empty"`
	Rows      []rowJSON `json:"rows"`
	Message   string    `json:"message"`
	Body      string    `json:"body"`
	Unit      cad.Unit  `json:"unit"`
	FetchedAt time.Time `json:"fetched_at"`
}

func newApproachesResponse(sess *session.Session) approachesResponse {
	resp := approachesResponse{
		Count:     sess.Rows.Len(),
		Empty:     sess.Rows.Empty(),
		Rows:      make([]rowJSON, 0, sess.Rows.Len()),
		Body:      sess.BodyName(),
		Unit:      sess.Unit(),
		FetchedAt: sess.FetchedAt,
	}
	for _, r := range sess.Rows.Rows {
		row := rowJSON{Designation: r.Designation, Distance: r.Distance, VRel: r.VRel, VInf: r.VInf}
		if r.Date.Valid {
			d := r.Date.Time.Format(RowTimeLayout)
			row.Date = &d
		}
		resp.Rows = append(resp.Rows, row)
	}
	if resp.Empty {
		resp.Message = fmt.Sprintf("No close approaches to %s matched the selected filters.", resp.Body)
	} else {
		resp.Message = fmt.Sprintf("Found %d close approaches to %s.", resp.Count, resp.Body)
	}
	return resp
}

// parseQuery builds a validated query from request parameters, starting from
// the defaults.
func parseQuery(r *http.Request) (cad.Query, error) {
	q := cad.DefaultQuery()
	if err := q.ApplyParams(r.URL.Query().Get); err != nil {
		return q, err
	}
	if err := q.ResolveOffset(); err != nil {
		return q, err
	}
	return q, q.Validate()
}

func (s *Server) handleApproaches(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		metrics.IncSearchesRejected()
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	ip := httputil.LimitKey(httputil.ClientIP(r, s.cfg.TrustProxy))
	if !s.limiter.acquire(ip) {
		metrics.IncSearchesRejected()
		s.logger.Warn("search rate limit exceeded",
			"component", "api",
			"remote_ip", ip,
			"current_count", s.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many concurrent searches")
		return
	}
	defer s.limiter.release(ip)

	sess := s.session(w, r)

	res, err := s.runner.Run(r.Context(), q)
	if err != nil {
		s.sessions.Clear(sess.ID, q)
		s.writeFetchError(w, r, err)
		return
	}

	sess = s.sessions.Replace(sess.ID, res)
	writeJSON(w, http.StatusOK, newApproachesResponse(sess))
}

// writeFetchError maps a failed search to a gateway status. Provider
// rejections are 502; transport timeouts are 504.
func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *cad.FetchError
	if !errors.As(err, &fe) {
		s.logger.Error("search failed", "component", "api", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	status := http.StatusBadGateway
	if fe.Kind == cad.KindTransport && isTimeout(err) {
		status = http.StatusGatewayTimeout
	}
	s.logger.Warn("search failed",
		"component", "api",
		"request_id", RequestID(r.Context()),
		"kind", fe.Kind,
		"provider_status", fe.StatusCode,
		"detail", fe.Detail,
	)
	writeJSON(w, status, map[string]any{
		"error":           string(fe.Kind),
		"detail":          fe.Detail,
		"provider_status": fe.StatusCode,
		"message":         err.Error(),
	})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// resultSession returns the caller's session if it holds search results,
// writing a 404 otherwise. Only searches create sessions.
func (s *Server) resultSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	var sess *session.Session
	if c, err := r.Cookie(SessionCookie); err == nil {
		sess, _ = s.sessions.Get(c.Value)
	}
	if sess == nil || !sess.HasResult {
		writeError(w, http.StatusNotFound, "no_results", "run a search first")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.resultSession(w, r)
	if !ok {
		return
	}

	data, err := export.Bytes(sess.Rows)
	if err != nil {
		metrics.IncExport("download", "error")
		writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}

	metrics.IncExport("download", "ok")
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.DefaultFilename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	withTrend := false
	if v := r.URL.Query().Get("trendline"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "trendline must be true or false")
			return
		}
		withTrend = b
	}

	sess, ok := s.resultSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, chart.Build(sess, chart.Options{TrendLine: withTrend, Capability: s.cfg.Trend}))
}

func (s *Server) handleExportS3(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "export_unavailable", export.ErrS3NotConfigured.Error())
		return
	}

	sess, ok := s.resultSession(w, r)
	if !ok {
		return
	}

	key := s.uploader.ObjectKey(sess.Query.Body, sess.FetchedAt)
	loc, err := s.uploader.Upload(r.Context(), key, sess.Rows)
	if err != nil {
		metrics.IncExport("s3", "error")
		s.logger.Error("s3 export failed", "component", "api", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "export_failed", err.Error())
		return
	}

	metrics.IncExport("s3", "ok")
	s.logger.Info("exported session to s3", "component", "api", "location", loc, "rows", sess.Rows.Len())
	writeJSON(w, http.StatusCreated, map[string]any{"location": loc, "rows": sess.Rows.Len()})
}
