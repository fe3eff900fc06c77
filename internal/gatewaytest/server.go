// Package gatewaytest provides an in-process fake of the APISIX admin and
// control APIs for tests. It speaks either the 2.x node envelope or the 3.x
// key/value envelope and keeps its state in memory.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
)

// Mode selects the server revision to emulate.
type Mode int

const (
	// ModeModern emulates a 3.x server: wrapped envelopes, pagination, credentials.
	ModeModern Mode = iota
	// ModeLegacy emulates a 2.x server: node envelopes, pagination rejected.
	ModeLegacy
)

// Request is one recorded request.
type Request struct {
	Method string
	Path   string
	Query  string
	APIKey string
}

// Server is a fake gateway. Admin and control routes share one listener.
type Server struct {
	*httptest.Server

	mode   Mode
	apiKey string

	credentials  bool
	secrets      bool
	streamRoutes bool
	plugins      []string

	mu       sync.Mutex
	store    map[string]map[string]map[string]interface{}
	requests []Request
	failures map[string]int
	nextID   int
	reloads  int
}

// Option configures a Server.
type Option func(*Server)

// WithMode sets the emulated revision.
func WithMode(mode Mode) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// WithAPIKey makes the admin routes require key.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithPlugins sets the plugin names advertised by both APIs.
func WithPlugins(names ...string) Option {
	return func(s *Server) {
		s.plugins = names
	}
}

// WithCredentials toggles the consumer credentials API.
func WithCredentials(enabled bool) Option {
	return func(s *Server) {
		s.credentials = enabled
	}
}

// WithSecrets toggles the secrets API.
func WithSecrets(enabled bool) Option {
	return func(s *Server) {
		s.secrets = enabled
	}
}

// WithStreamRoutes toggles the stream routes API.
func WithStreamRoutes(enabled bool) Option {
	return func(s *Server) {
		s.streamRoutes = enabled
	}
}

// New starts a fake gateway. Call Close when done.
func New(opts ...Option) *Server {
	server := &Server{
		mode:         ModeModern,
		credentials:  true,
		secrets:      true,
		streamRoutes: true,
		plugins:      []string{"key-auth", "limit-count", "proxy-rewrite"},
		store:        make(map[string]map[string]map[string]interface{}),
		failures:     make(map[string]int),
	}

	for _, opt := range opts {
		opt(server)
	}

	if server.mode == ModeLegacy {
		server.credentials = false
		server.secrets = false
	}

	server.Server = httptest.NewServer(server.router())

	return server
}

func (s *Server) router() http.Handler {
	router := chi.NewRouter()
	router.Use(s.record)

	router.Route(constants.AdminPrefix, func(admin chi.Router) {
		admin.Use(s.authenticate)
		admin.Get("/plugins/list", s.handlePluginsList)
		admin.HandleFunc("/*", s.handleAdmin)
	})

	router.Get(constants.ControlHealthcheck, s.handleHealthcheck)
	router.Get(constants.ControlSchema, s.handleSchema)
	router.Get(constants.ControlPluginsList, s.handlePluginsList)
	router.Put(constants.ControlPluginsReload, s.handleReload)
	router.Get(constants.ControlRoutes, s.controlList("routes"))
	router.Get(constants.ControlServices, s.controlList("services"))
	router.Get(constants.ControlUpstreams, s.controlList("upstreams"))
	router.Get(constants.ControlRoute+"/{id}", s.handleControlRoute)

	return router
}

// Seed stores an entity directly, bypassing the API.
func (s *Server) Seed(collection, id string, entity map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyMap(entity)
	stored[identityField(collection)] = id

	if _, ok := stored[constants.FieldCreateTime]; !ok {
		now := float64(time.Now().Unix())
		stored[constants.FieldCreateTime] = now
		stored[constants.FieldUpdateTime] = now
	}

	s.collection(collection)[id] = stored
}

// Entity returns a copy of a stored entity.
func (s *Server) Entity(collection, id string) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.store[collection][id]
	if !ok {
		return nil, false
	}

	return copyMap(entity), true
}

// Len returns the number of stored entities in collection.
func (s *Server) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.store[collection])
}

// FailOn makes every request with method to the exact admin path fail with status.
func (s *Server) FailOn(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[method+" "+path] = status
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)

	return out
}

// Count returns the number of recorded requests with method to the exact path.
func (s *Server) Count(method, path string) int {
	count := 0

	for _, request := range s.Requests() {
		if request.Method == method && request.Path == path {
			count++
		}
	}

	return count
}

// Writes returns the number of recorded mutating requests.
func (s *Server) Writes() int {
	count := 0

	for _, request := range s.Requests() {
		if request.Method != http.MethodGet && request.Method != http.MethodHead {
			count++
		}
	}

	return count
}

// Reloads returns the number of plugin reloads requested.
func (s *Server) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reloads
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: request.Method,
			Path:   request.URL.Path,
			Query:  request.URL.RawQuery,
			APIKey: request.Header.Get(constants.HeaderAPIKey),
		})
		status, fail := s.failures[request.Method+" "+request.URL.Path]
		s.mu.Unlock()

		if fail {
			writeJSON(writer, status, map[string]interface{}{"error_msg": "injected failure"})

			return
		}

		next.ServeHTTP(writer, request)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if s.apiKey != "" && request.Header.Get(constants.HeaderAPIKey) != s.apiKey {
			writeJSON(writer, http.StatusUnauthorized, map[string]interface{}{"message": "failed to check token"})

			return
		}

		next.ServeHTTP(writer, request)
	})
}

// target is a parsed admin path: collection and optional id.
type target struct {
	collection string
	id         string
}

func parseTarget(rest string) target {
	rest = strings.Trim(rest, "/")
	parts := strings.Split(rest, "/")

	if parts[0] == "secrets" {
		if len(parts) == 1 {
			return target{collection: "secrets"}
		}

		return target{collection: "secrets", id: strings.Join(parts[1:], "/")}
	}

	if len(parts)%2 == 1 {
		return target{collection: rest}
	}

	return target{
		collection: strings.Join(parts[:len(parts)-1], "/"),
		id:         parts[len(parts)-1],
	}
}

func (s *Server) enabled(collection string) bool {
	switch {
	case strings.HasSuffix(collection, "/"+constants.CredentialsSegment):
		return s.credentials
	case collection == "secrets":
		return s.secrets
	case collection == "stream_routes":
		return s.streamRoutes
	default:
		return true
	}
}

func (s *Server) handleAdmin(writer http.ResponseWriter, request *http.Request) {
	tgt := parseTarget(chi.URLParam(request, "*"))

	if !s.enabled(tgt.collection) {
		s.writeNotFound(writer)

		return
	}

	switch {
	case request.Method == http.MethodGet && tgt.id == "":
		s.handleList(writer, request, tgt)
	case request.Method == http.MethodGet:
		s.handleGet(writer, tgt)
	case request.Method == http.MethodPut:
		s.handlePut(writer, request, tgt)
	case request.Method == http.MethodPost && tgt.id == "":
		s.handlePost(writer, request, tgt)
	case request.Method == http.MethodPatch && tgt.id != "":
		s.handlePatch(writer, request, tgt)
	case request.Method == http.MethodDelete && tgt.id != "":
		s.handleDelete(writer, tgt)
	default:
		writeJSON(writer, http.StatusMethodNotAllowed, map[string]interface{}{"error_msg": "not allowed"})
	}
}

func (s *Server) handleList(writer http.ResponseWriter, request *http.Request, tgt target) {
	query := request.URL.Query()
	paged := query.Has(constants.QueryPage) || query.Has(constants.QueryPageSize)

	if paged && s.mode == ModeLegacy {
		writeJSON(writer, http.StatusBadRequest, map[string]interface{}{"error_msg": "unknown args: page, page_size"})

		return
	}

	s.mu.Lock()
	items := s.sorted(tgt.collection)
	s.mu.Unlock()

	if name := query.Get("name"); name != "" {
		filtered := items[:0]

		for _, item := range items {
			if item["name"] == name {
				filtered = append(filtered, item)
			}
		}

		items = filtered
	}

	total := len(items)

	if paged {
		page := atoiDefault(query.Get(constants.QueryPage), 1)
		pageSize := atoiDefault(query.Get(constants.QueryPageSize), constants.MinPageSize)

		if pageSize < constants.MinPageSize || pageSize > constants.MaxPageSize || page < 1 {
			writeJSON(writer, http.StatusBadRequest, map[string]interface{}{"error_msg": "invalid page or page_size"})

			return
		}

		start := min((page-1)*pageSize, total)
		end := min(start+pageSize, total)
		items = items[start:end]
	}

	nodes := make([]interface{}, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, s.node(tgt.collection, item))
	}

	if s.mode == ModeLegacy {
		var legacyNodes interface{} = nodes
		if len(nodes) == 0 {
			legacyNodes = map[string]interface{}{}
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{
			"action": "get",
			"count":  len(nodes),
			"node": map[string]interface{}{
				"dir":   true,
				"key":   "/apisix/" + tgt.collection,
				"nodes": legacyNodes,
			},
		})

		return
	}

	writeJSON(writer, http.StatusOK, map[string]interface{}{
		"total": total,
		"list":  nodes,
	})
}

func (s *Server) handleGet(writer http.ResponseWriter, tgt target) {
	s.mu.Lock()
	entity, ok := s.store[tgt.collection][tgt.id]

	if ok {
		entity = copyMap(entity)
	}
	s.mu.Unlock()

	if !ok {
		s.writeNotFound(writer)

		return
	}

	// certificate key material is only returned by list reads
	if constants.Collection(tgt.collection) == "ssls" {
		delete(entity, "key")
		delete(entity, "keys")
	}

	s.writeEntity(writer, http.StatusOK, "get", tgt.collection, entity)
}

func (s *Server) handlePut(writer http.ResponseWriter, request *http.Request, tgt target) {
	body, ok := s.readBody(writer, request)
	if !ok {
		return
	}

	id := tgt.id
	identity := identityField(tgt.collection)

	if id == "" {
		id, _ = body[identity].(string)
	}

	if id == "" {
		writeJSON(writer, http.StatusBadRequest, map[string]interface{}{"error_msg": "missing " + identity})

		return
	}

	s.save(writer, tgt.collection, id, body)
}

func (s *Server) handlePost(writer http.ResponseWriter, request *http.Request, tgt target) {
	body, ok := s.readBody(writer, request)
	if !ok {
		return
	}

	identity := identityField(tgt.collection)
	if id, _ := body[identity].(string); id != "" {
		writeJSON(writer, http.StatusBadRequest, map[string]interface{}{
			"error_msg": fmt.Sprintf("wrong %s %s, do not need it", tgt.collection, identity),
		})

		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("%020d", s.nextID)
	s.mu.Unlock()

	s.save(writer, tgt.collection, id, body)
}

// save validates and writes body under id, preserving create_time.
func (s *Server) save(writer http.ResponseWriter, collection, id string, body map[string]interface{}) {
	if reason := validate(collection, body); reason != "" {
		writeJSON(writer, http.StatusBadRequest, map[string]interface{}{"error_msg": reason})

		return
	}

	now := float64(time.Now().Unix())
	body[identityField(collection)] = id
	body[constants.FieldUpdateTime] = now

	s.mu.Lock()
	existing, exists := s.collection(collection)[id]

	if exists && existing[constants.FieldCreateTime] != nil {
		body[constants.FieldCreateTime] = existing[constants.FieldCreateTime]
	} else {
		body[constants.FieldCreateTime] = now
	}

	s.collection(collection)[id] = body
	stored := copyMap(body)
	s.mu.Unlock()

	status := http.StatusCreated
	if exists {
		status = http.StatusOK
	}

	s.writeEntity(writer, status, "set", collection, stored)
}

func (s *Server) handlePatch(writer http.ResponseWriter, request *http.Request, tgt target) {
	body, ok := s.readBody(writer, request)
	if !ok {
		return
	}

	s.mu.Lock()
	existing, exists := s.store[tgt.collection][tgt.id]

	if exists {
		for key, value := range body {
			existing[key] = value
		}

		existing[constants.FieldUpdateTime] = float64(time.Now().Unix())
		existing = copyMap(existing)
	}
	s.mu.Unlock()

	if !exists {
		s.writeNotFound(writer)

		return
	}

	s.writeEntity(writer, http.StatusOK, "compareAndSwap", tgt.collection, existing)
}

func (s *Server) handleDelete(writer http.ResponseWriter, tgt target) {
	s.mu.Lock()
	_, exists := s.store[tgt.collection][tgt.id]
	delete(s.store[tgt.collection], tgt.id)
	s.mu.Unlock()

	if !exists {
		s.writeNotFound(writer)

		return
	}

	writeJSON(writer, http.StatusOK, map[string]interface{}{
		"deleted": "1",
		"key":     "/apisix/" + tgt.collection + "/" + tgt.id,
	})
}

func (s *Server) handlePluginsList(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, s.plugins)
}

func (s *Server) handleHealthcheck(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, []interface{}{
		map[string]interface{}{
			"name":  "/apisix/upstreams/1",
			"type":  "http",
			"nodes": []interface{}{map[string]interface{}{"ip": "127.0.0.1", "port": 1980, "status": "healthy"}},
		},
	})
}

func (s *Server) handleSchema(writer http.ResponseWriter, _ *http.Request) {
	plugins := make(map[string]interface{}, len(s.plugins))
	for _, name := range s.plugins {
		plugins[name] = map[string]interface{}{"type": "object"}
	}

	writeJSON(writer, http.StatusOK, map[string]interface{}{
		"main":    map[string]interface{}{"route": map[string]interface{}{"type": "object"}},
		"plugins": plugins,
	})
}

func (s *Server) handleReload(writer http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.reloads++
	s.mu.Unlock()

	writeJSON(writer, http.StatusOK, map[string]interface{}{"message": "done"})
}

func (s *Server) controlList(collection string) http.HandlerFunc {
	return func(writer http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		items := s.sorted(collection)
		s.mu.Unlock()

		nodes := make([]interface{}, 0, len(items))
		for _, item := range items {
			nodes = append(nodes, s.node(collection, item))
		}

		writeJSON(writer, http.StatusOK, nodes)
	}
}

func (s *Server) handleControlRoute(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")

	s.mu.Lock()
	entity, ok := s.store["routes"][id]

	if ok {
		entity = copyMap(entity)
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(writer, http.StatusNotFound, map[string]interface{}{"error_msg": "route not found"})

		return
	}

	writeJSON(writer, http.StatusOK, s.node("routes", entity))
}

func (s *Server) readBody(writer http.ResponseWriter, request *http.Request) (map[string]interface{}, bool) {
	data, err := io.ReadAll(request.Body)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]interface{}{"error_msg": err.Error()})

		return nil, false
	}

	var body map[string]interface{}

	err = json.Unmarshal(data, &body)
	if err != nil || body == nil {
		writeJSON(writer, http.StatusBadRequest, map[string]interface{}{"error_msg": "invalid request body"})

		return nil, false
	}

	return body, true
}

func (s *Server) writeEntity(writer http.ResponseWriter, status int, action, collection string, entity map[string]interface{}) {
	node := s.node(collection, entity)

	if s.mode == ModeLegacy {
		writeJSON(writer, status, map[string]interface{}{"action": action, "node": node})

		return
	}

	writeJSON(writer, status, node)
}

func (s *Server) writeNotFound(writer http.ResponseWriter) {
	writeJSON(writer, http.StatusNotFound, map[string]interface{}{"message": "Key not found"})
}

// node wraps entity the way the storage layer reports it. 2.x servers did
// not repeat the id inside the value for every collection, so the legacy
// node drops it and leaves the key as the only source.
func (s *Server) node(collection string, entity map[string]interface{}) map[string]interface{} {
	identity := identityField(collection)
	id := fmt.Sprint(entity[identity])
	value := copyMap(entity)

	if s.mode == ModeLegacy && identity == constants.FieldID {
		delete(value, constants.FieldID)
	}

	return map[string]interface{}{
		"key":           "/apisix/" + collection + "/" + id,
		"value":         value,
		"createdIndex":  1,
		"modifiedIndex": 1,
	}
}

func (s *Server) collection(name string) map[string]map[string]interface{} {
	items, ok := s.store[name]
	if !ok {
		items = make(map[string]map[string]interface{})
		s.store[name] = items
	}

	return items
}

func (s *Server) sorted(collection string) []map[string]interface{} {
	ids := make([]string, 0, len(s.store[collection]))
	for id := range s.store[collection] {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	items := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		items = append(items, copyMap(s.store[collection][id]))
	}

	return items
}

func validate(collection string, body map[string]interface{}) string {
	for _, field := range constants.ProfileFor(collection).RequiredFields {
		if value, ok := body[field]; !ok || value == nil || value == "" {
			return "invalid configuration: property \"" + field + "\" is required"
		}
	}

	return ""
}

func identityField(collection string) string {
	return constants.ProfileFor(collection).IdentityField
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		out[key] = value
	}

	return out
}

func atoiDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return value
}

func writeJSON(writer http.ResponseWriter, status int, payload interface{}) {
	writer.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}
