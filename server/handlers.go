package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"nots/obsel"
	"nots/paging"
	"nots/session"
	"nots/store"
)

// pixelPNG is the smallest valid PNG file, served as the response to
// image-tag ingestion so the browser has something to render.
var pixelPNG = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
	0x00, 0x00, 0x00, 0x0a, 'I', 'D', 'A', 'T',
	0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00, 0x05, 0x00, 0x01,
	0x0d, 0x0a, 0x2d, 0xb4,
	0x00, 0x00, 0x00, 0x00, 'I', 'E', 'N', 'D',
	0xae, 0x42, 0x60, 0x82,
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	corsHeaders(w)
	if r.Method == http.MethodHead || r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if id := s.sessionID(r); id != "" {
		fmt.Fprintf(w, "Logged in as %s", id)
		return
	}
	io.WriteString(w, "You are not logged in")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("userinfo")
	if raw == "" {
		raw = `{"default_subject":"anonymous"}`
	}
	var profile map[string]any
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid userinfo: %w", err))
		return
	}
	id, merged, err := s.sessions.Login(w, r, profile)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	// Record the login itself as an obsel, stamped at server time.
	// Client clocks may disagree; this timestamp is indicative.
	now := time.Now().UnixMilli()
	login := &obsel.Obsel{
		Type:    "Login",
		Begin:   now,
		End:     now,
		Subject: store.DefaultSubject(merged),
	}
	if _, err := s.store.InsertObsels(r.Context(), id, []*obsel.Obsel{login}); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	requestLogger(r.Context()).Debug("logged in", "session", id)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleTraceRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		corsHeaders(w)
		w.WriteHeader(http.StatusOK)
		return
	}

	data := r.URL.Query().Get("post")
	if data == "" {
		data = r.URL.Query().Get("data")
	}
	if r.Method == http.MethodPost || (r.Method == http.MethodGet && data != "") {
		s.ingest(w, r, data)
		return
	}

	if !s.allowRead(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodHead:
		total, err := s.store.Count(r.Context(), store.Filter{})
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		corsHeaders(w)
		w.Header().Set("Content-Range", paging.WindowRange(total, total))
		w.WriteHeader(http.StatusOK)
	default:
		s.subjectIndex(w, r)
	}
}

// ingest stores a batch of obsels submitted either as a POST JSON body
// or as a GET data/post parameter, possibly in the compact format. GET
// submissions come from image tags, so the answer is a pixel.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request, data string) {
	id, err := s.sessions.Ensure(w, r)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	var batch []*obsel.Obsel
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(body) > 0 {
			batch, err = obsel.DecodeJSON(body)
		}
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
	} else if data != "" {
		if obsel.IsCompact(data) {
			profile, err := s.store.GetUserInfo(r.Context(), id)
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
			batch, err = obsel.DecodeCompact(data, store.DefaultSubject(profile))
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
		} else {
			var err error
			batch, err = obsel.DecodeJSON([]byte(data))
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
		}
	}

	n, err := s.store.InsertObsels(r.Context(), id, batch)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	requestLogger(r.Context()).Debug("obsels stored", "count", n, "session", id)

	corsHeaders(w)
	w.Header().Set("X-Obsel-Count", strconv.Itoa(n))
	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pixelPNG)
		return
	}
	io.WriteString(w, strconv.Itoa(n))
}

// subjectIndex renders the HTML list of subjects with their obsel
// counts and time spans.
func (s *Server) subjectIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	var b strings.Builder
	b.WriteString("<b>Available subjects:</b>\n<ul>\n")
	for _, subj := range stats.Subjects {
		fmt.Fprintf(&b, "<li><a href=%q>%s</a> (%d obsels between %s and %s)</li>\n",
			subj.ID, subj.ID, subj.ObselCount,
			obsel.FormatTime(subj.MinTimestamp), obsel.FormatTime(subj.MaxTimestamp))
	}
	b.WriteString("</ul>")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, b.String())
}

func (s *Server) handleTraceSubject(w http.ResponseWriter, r *http.Request) {
	if !s.allowRead(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized)
		return
	}

	f, err := filterFromRequest(r)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	q := r.URL.Query()
	pageSize := queryInt(r, "pageSize", paging.DefaultPageSize)

	if pageStr := q.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid page: %w", err))
			return
		}
		s.servePage(w, r, f, page, pageSize)
		return
	}
	s.serveWindow(w, r, f)
}

// servePage answers a page-addressed read-back. The range covers the
// fully filtered set, subject and time window combined.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, f store.Filter, page, pageSize int) {
	total, err := s.store.Count(r.Context(), f)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	rng, err := paging.Resolve(page, pageSize, total)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	corsHeaders(w)
	w.Header().Set("Content-Range", rng.ContentRange())
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	records, err := s.store.QueryPage(r.Context(), f, rng.Limit, rng.Offset)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, traceDocument(obsel.EnrichAll(records)))
}

// serveWindow answers a time-window or unbounded read-back. The range
// total is the subject's whole trace; the count is what matched.
func (s *Server) serveWindow(w http.ResponseWriter, r *http.Request, f store.Filter) {
	count, err := s.store.Count(r.Context(), f)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	total, err := s.store.Count(r.Context(), f.SubjectScope())
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	corsHeaders(w)
	w.Header().Set("Content-Range", paging.WindowRange(count, total))
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	if !f.Windowed() {
		if err := paging.GuardUnbounded(count, s.maxObselCount); err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
	}
	records, err := s.store.Query(r.Context(), f)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, traceDocument(obsel.EnrichAll(records)))
}

func (s *Server) handleTraceObsel(w http.ResponseWriter, r *http.Request) {
	if !s.allowRead(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	record, err := s.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	var batch []*obsel.Obsel
	if record != nil {
		batch = append(batch, record)
	}
	writeJSON(w, http.StatusOK, traceDocument(obsel.EnrichAll(batch)))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	buckets, err := s.store.DayBuckets(r.Context(), user)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	if buckets == nil {
		buckets = []store.DayBucket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": user,
		"ranges":  buckets,
	})
}

// sessionID returns the request's session ID, or "".
func (s *Server) sessionID(r *http.Request) string {
	return session.FromContext(r.Context())
}

// filterFromRequest builds a store filter from the subject path
// segment and the from/to query parameters. The pseudo-subject
// "@obsels" addresses the whole store.
func filterFromRequest(r *http.Request) (store.Filter, error) {
	f := store.Filter{}
	if subject := chi.URLParam(r, "subject"); subject != "" && subject != "@obsels" {
		f.Subject = subject
	}
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		ms, err := obsel.ParseTimestamp(v, false)
		if err != nil {
			return f, err
		}
		f.From = &ms
	}
	if v := q.Get("to"); v != "" {
		ms, err := obsel.ParseTimestamp(v, true)
		if err != nil {
			return f, err
		}
		f.To = &ms
	}
	return f, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
