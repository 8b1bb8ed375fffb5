package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"wallboard/internal/config"
	"wallboard/internal/feed"
	"wallboard/internal/ics"
	appLog "wallboard/internal/log"
	"wallboard/internal/model"
	"wallboard/internal/sheet"
	"wallboard/internal/store"
	"wallboard/internal/weather"
)

// Server provides the dashboard HTTP API: calendar events, the maintenance
// sheet, energy usage import/history, weather, and the CRUD resources.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	fetcher *feed.Fetcher
	chain   *weather.Chain
	mux     *http.ServeMux

	// TTL caches so the rotating display can poll without re-fetching
	// third-party feeds on every request. The cron refresh loop warms them.
	eventsMu    sync.RWMutex
	eventsCache *cacheSlot[eventsResponse]

	sheetMu    sync.RWMutex
	sheetCache *cacheSlot[sheetResponse]

	weatherMu    sync.RWMutex
	weatherCache *cacheSlot[weather.Report]
}

const (
	eventsCacheTTL  = 5 * time.Minute
	sheetCacheTTL   = 5 * time.Minute
	weatherCacheTTL = 10 * time.Minute
)

// cacheSlot holds one cached response and its timestamp.
type cacheSlot[T any] struct {
	value     T
	updatedAt time.Time
}

func (c *cacheSlot[T]) fresh(ttl time.Duration) bool {
	return c != nil && time.Since(c.updatedAt) < ttl
}

// NewServer constructs a Server. All collaborators are passed in explicitly;
// the server owns no process-wide state.
func NewServer(cfg *config.Config, st *store.Store, fetcher *feed.Fetcher, chain *weather.Chain) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		fetcher: fetcher,
		chain:   chain,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Wallboard", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/sheet", s.handleSheet)
	s.mux.HandleFunc("/api/weather", s.handleWeather)
	s.mux.HandleFunc("/api/energy", s.handleEnergyList)
	s.mux.HandleFunc("/api/energy/import", s.handleEnergyImport)

	for _, spec := range store.Resources {
		s.registerResource(spec)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleEvents returns windowed occurrences for the configured ICS sources.
//
// GET /api/events?days=7&backfill=1
//   - days:     how many future days to include (default config HorizonDays)
//   - backfill: how many past days to include (default config BackfillDays)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), s.cfg.BackfillDays)
	if backfill < 0 {
		backfill = 0
	}

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec.fresh(eventsCacheTTL) {
		writeJSON(w, http.StatusOK, ec.value)
		return
	}

	resp, err := s.buildEvents(r.Context(), days, backfill)
	if err != nil {
		appLog.Error("api events failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build events")
		return
	}

	s.eventsMu.Lock()
	s.eventsCache = &cacheSlot[eventsResponse]{value: resp, updatedAt: time.Now()}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// buildEvents fetches, parses, and windows all configured ICS sources.
func (s *Server) buildEvents(ctx context.Context, days, backfill int) (eventsResponse, error) {
	loc := resolveLocationOrLocal(s.cfg.Timezone)

	now := time.Now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	sources := make([]feed.Source, 0, len(s.cfg.ICS))
	for _, csrc := range s.cfg.ICS {
		if csrc.URL == "" {
			continue
		}
		id := csrc.ID
		if id == "" {
			if csrc.Name != "" {
				id = csrc.Name
			} else {
				id = csrc.URL
			}
		}
		sources = append(sources, feed.Source{ID: id, URL: csrc.URL})
	}

	dtos := make([]occurrenceDTO, 0)
	if len(sources) > 0 {
		results, fetchErrs := s.fetcher.FetchAll(ctx, sources)
		if len(fetchErrs) > 0 {
			appLog.Error("api events: one or more feed fetches failed", errorsAggregate(fetchErrs), "error_count", len(fetchErrs))
		}

		windowCfg := ics.WindowConfig{
			DisplayLocation: loc,
			RangeStart:      rangeStart,
			RangeEnd:        rangeEnd,
		}

		for _, res := range results {
			events := ics.ExtractEvents(string(res.Body))
			occs, err := ics.WindowEvents(res.Source.ID, events, windowCfg)
			if err != nil {
				return eventsResponse{}, err
			}
			for _, occ := range occs {
				dtos = append(dtos, occurrenceDTO{
					SourceID:    occ.SourceID,
					InstanceKey: occ.InstanceKey,
					Summary:     occ.Summary,
					AllDay:      occ.AllDay,
					Start:       occ.Start,
					End:         occ.End,
				})
			}
		}
	}

	return eventsResponse{
		Occurrences:     dtos,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	}, nil
}

// sheetResponse is the JSON response shape for /api/sheet.
type sheetResponse struct {
	Sections  []model.SheetSection `json:"sections"`
	FromCache bool                 `json:"from_cache"`
}

// handleSheet returns the sectioned spreadsheet export.
func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cfg.Sheet.URL == "" {
		writeJSON(w, http.StatusOK, sheetResponse{Sections: []model.SheetSection{}})
		return
	}

	s.sheetMu.RLock()
	sc := s.sheetCache
	s.sheetMu.RUnlock()
	if sc.fresh(sheetCacheTTL) {
		writeJSON(w, http.StatusOK, sc.value)
		return
	}

	res, err := s.fetcher.FetchOne(r.Context(), feed.Source{ID: "sheet", URL: s.cfg.Sheet.URL})
	if err != nil {
		appLog.Error("api sheet fetch failed", err)
		writeError(w, http.StatusBadGateway, "failed to fetch sheet export")
		return
	}

	resp := sheetResponse{
		Sections:  sheet.ExtractSections(string(res.Body)),
		FromCache: res.FromCache,
	}

	s.sheetMu.Lock()
	s.sheetCache = &cacheSlot[sheetResponse]{value: resp, updatedAt: time.Now()}
	s.sheetMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleWeather runs the provider chain for the configured coordinates.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.weatherMu.RLock()
	wc := s.weatherCache
	s.weatherMu.RUnlock()
	if wc.fresh(weatherCacheTTL) {
		writeJSON(w, http.StatusOK, wc.value)
		return
	}

	rep, err := s.chain.Fetch(r.Context(), s.cfg.Weather.Latitude, s.cfg.Weather.Longitude)
	if err != nil {
		appLog.Error("api weather failed", err)
		writeError(w, http.StatusBadGateway, "all weather providers failed")
		return
	}

	s.weatherMu.Lock()
	s.weatherCache = &cacheSlot[weather.Report]{value: rep, updatedAt: time.Now()}
	s.weatherMu.Unlock()

	writeJSON(w, http.StatusOK, rep)
}

// RefreshFeeds warms the events and sheet caches; the cron scheduler calls
// this so the display never waits on a cold fetch.
func (s *Server) RefreshFeeds(ctx context.Context) {
	resp, err := s.buildEvents(ctx, s.cfg.HorizonDays, s.cfg.BackfillDays)
	if err != nil {
		appLog.Error("refresh: events failed", err)
	} else {
		s.eventsMu.Lock()
		s.eventsCache = &cacheSlot[eventsResponse]{value: resp, updatedAt: time.Now()}
		s.eventsMu.Unlock()
	}

	if s.cfg.Sheet.URL != "" {
		res, err := s.fetcher.FetchOne(ctx, feed.Source{ID: "sheet", URL: s.cfg.Sheet.URL})
		if err != nil {
			appLog.Error("refresh: sheet fetch failed", err)
			return
		}
		sresp := sheetResponse{
			Sections:  sheet.ExtractSections(string(res.Body)),
			FromCache: res.FromCache,
		}
		s.sheetMu.Lock()
		s.sheetCache = &cacheSlot[sheetResponse]{value: sresp, updatedAt: time.Now()}
		s.sheetMu.Unlock()
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
