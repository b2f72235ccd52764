// Package robloxtest provides an in-process stand-in for the Roblox APIs used in tests.
package robloxtest

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
)

// Endpoint labels used to inject failures and count hits.
const (
	EndpointLookup     = "lookup"
	EndpointDetails    = "details"
	EndpointFollowers  = "followers"
	EndpointFollowings = "followings"
	EndpointFriends    = "friends"
	EndpointGroups     = "groups"
	EndpointAvatar     = "avatar"
	EndpointHistory    = "history"
	EndpointPresence   = "presence"
)

// EnrichmentEndpoints lists the best-effort endpoints.
var EnrichmentEndpoints = []string{
	EndpointFollowers, EndpointFollowings, EndpointFriends, EndpointGroups,
	EndpointAvatar, EndpointHistory, EndpointPresence,
}

// User is a fake account served by the Server.
type User struct {
	ID          uint64
	Name        string
	DisplayName string
	Description string
	Created     time.Time
	IsBanned    bool
	Verified    bool
	Followers   uint64
	Followings  uint64
	Friends     uint64
	Groups      int
	AvatarURL   string
	History     []string // Oldest first
	Presence    int
	NoPresence  bool // Omit the user from presence responses
}

// Server emulates the subset of the Roblox APIs the aggregator calls.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[uint64]*User
	names     map[string]uint64
	failures  map[string]int
	malformed map[string]bool
	delays    map[string]time.Duration
	hits      map[string]int
	agents    map[string]struct{}
}

// NewServer starts a fake API server that is closed when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()

	s := &Server{
		users:     make(map[uint64]*User),
		names:     make(map[string]uint64),
		failures:  make(map[string]int),
		malformed: make(map[string]bool),
		delays:    make(map[string]time.Duration),
		hits:      make(map[string]int),
		agents:    make(map[string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/usernames/users", s.wrap(EndpointLookup, s.handleLookup))
	mux.HandleFunc("GET /v1/users/{id}", s.wrap(EndpointDetails, s.handleDetails))
	mux.HandleFunc("GET /v1/users/{id}/username-history", s.wrap(EndpointHistory, s.handleHistory))
	mux.HandleFunc("GET /v1/users/{id}/followers/count", s.wrap(EndpointFollowers, s.handleCount(func(u *User) uint64 {
		return u.Followers
	})))
	mux.HandleFunc("GET /v1/users/{id}/followings/count", s.wrap(EndpointFollowings, s.handleCount(func(u *User) uint64 {
		return u.Followings
	})))
	mux.HandleFunc("GET /v1/users/{id}/friends/count", s.wrap(EndpointFriends, s.handleCount(func(u *User) uint64 {
		return u.Friends
	})))
	mux.HandleFunc("GET /v1/users/{id}/groups/roles", s.wrap(EndpointGroups, s.handleGroups))
	mux.HandleFunc("GET /v2/users/{id}/groups/roles", s.wrap(EndpointGroups, s.handleGroups))
	mux.HandleFunc("POST /v1/batch", s.wrap(EndpointAvatar, s.handleThumbnails))
	mux.HandleFunc("POST /v1/presence/users", s.wrap(EndpointPresence, s.handlePresence))

	s.Server = httptest.NewServer(mux)
	tb.Cleanup(s.Close)

	return s
}

// BaseURLs points every Roblox API host at this server.
func (s *Server) BaseURLs() upstream.BaseURLs {
	return upstream.BaseURLs{
		Users:      s.URL,
		Friends:    s.URL,
		Groups:     s.URL,
		Thumbnails: s.URL,
		Presence:   s.URL,
	}
}

// AddUser registers a fake account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = &u
	s.names[strings.ToLower(u.Name)] = u.ID
}

// Fail makes an endpoint respond with the given status. A zero status clears it.
func (s *Server) Fail(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status == 0 {
		delete(s.failures, endpoint)
		return
	}
	s.failures[endpoint] = status
}

// Malform makes an endpoint respond 200 with a JSON array where an object is expected.
func (s *Server) Malform(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.malformed[endpoint] = true
}

// Delay makes an endpoint wait before responding.
func (s *Server) Delay(endpoint string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delays[endpoint] = d
}

// Hits returns how many requests reached an endpoint.
func (s *Server) Hits(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[endpoint]
}

// TotalHits returns the number of requests across all endpoints.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// UserAgents returns every User-Agent header seen so far.
func (s *Server) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := make([]string, 0, len(s.agents))
	for agent := range s.agents {
		agents = append(agents, agent)
	}
	return agents
}

// wrap applies hit counting and injected delays or failures.
func (s *Server) wrap(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[endpoint]++
		s.agents[r.Header.Get("User-Agent")] = struct{}{}
		status := s.failures[endpoint]
		malformed := s.malformed[endpoint]
		delay := s.delays[endpoint]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if status != 0 {
			if status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "30")
			}
			writeJSON(w, status, map[string]any{
				"errors": []map[string]any{{"code": 0, "message": http.StatusText(status)}},
			})
			return
		}

		if malformed {
			writeJSON(w, http.StatusOK, []any{})
			return
		}

		next(w, r)
	}
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Usernames []string `json:"usernames"`
	}
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{}})
		return
	}

	data := make([]map[string]any, 0, len(req.Usernames))
	for _, name := range req.Usernames {
		u := s.userByName(name)
		if u == nil {
			continue
		}
		data = append(data, map[string]any{
			"requestedUsername": name,
			"hasVerifiedBadge":  u.Verified,
			"id":                u.ID,
			"name":              u.Name,
			"displayName":       u.DisplayName,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	u := s.userFromPath(r)
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"errors": []map[string]any{{"code": 3, "message": "The user id is invalid."}},
		})
		return
	}

	body := map[string]any{
		"description":            u.Description,
		"isBanned":               u.IsBanned,
		"externalAppDisplayName": nil,
		"hasVerifiedBadge":       u.Verified,
		"id":                     u.ID,
		"name":                   u.Name,
		"displayName":            u.DisplayName,
	}
	if !u.Created.IsZero() {
		body["created"] = u.Created.UTC().Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCount(value func(*User) uint64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := s.userFromPath(r)
		if u == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": value(u)})
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	u := s.userFromPath(r)
	if u == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{}})
		return
	}

	data := make([]map[string]any, u.Groups)
	for i := range data {
		data[i] = map[string]any{
			"group": map[string]any{
				"id":               i + 1,
				"name":             "Group " + strconv.Itoa(i+1),
				"memberCount":      100,
				"hasVerifiedBadge": false,
			},
			"role":  map[string]any{"id": 1, "name": "Member", "rank": 1},
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	var req []struct {
		RequestID string `json:"requestId"`
		TargetID  uint64 `json:"targetId"`
		Type      string `json:"type"`
	}
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{}})
		return
	}

	data := make([]map[string]any, 0, len(req))
	for _, item := range req {
		entry := map[string]any{
			"requestId":    item.RequestID,
			"errorCode":    0,
			"errorMessage": "",
			"targetId":     item.TargetID,
			"state":        "Blocked",
			"imageUrl":     nil,
			"version":      "TN3",
		}
		if u := s.userByID(item.TargetID); u != nil && u.AvatarURL != "" {
			entry["state"] = "Completed"
			entry["imageUrl"] = u.AvatarURL
		}
		data = append(data, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	u := s.userFromPath(r)
	if u == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	history := slices.Clone(u.History)
	if r.URL.Query().Get("sortOrder") == "Desc" {
		slices.Reverse(history)
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	start = min(max(start, 0), len(history))
	end := min(start+limit, len(history))

	data := make([]map[string]any, 0, end-start)
	for _, name := range history[start:end] {
		data = append(data, map[string]any{"name": name})
	}

	var next any
	if end < len(history) {
		next = strconv.Itoa(end)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"previousPageCursor": nil,
		"nextPageCursor":     next,
		"data":               data,
	})
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserIDs []uint64 `json:"userIds"`
	}
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{}})
		return
	}

	presences := make([]map[string]any, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		u := s.userByID(id)
		if u == nil || u.NoPresence {
			continue
		}
		presences = append(presences, map[string]any{
			"userPresenceType": u.Presence,
			"lastLocation":     "Website",
			"placeId":          nil,
			"rootPlaceId":      nil,
			"gameId":           nil,
			"universeId":       nil,
			"userId":           u.ID,
			"lastOnline":       time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"userPresences": presences})
}

func (s *Server) userFromPath(r *http.Request) *User {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil
	}
	return s.userByID(id)
}

func (s *Server) userByID(id uint64) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.users[id]
}

func (s *Server) userByName(name string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.names[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return s.users[id]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := sonic.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
