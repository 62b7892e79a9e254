package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/recordkit/pkg/catalog"
	"github.com/ssargent/recordkit/pkg/logger"
	"github.com/ssargent/recordkit/pkg/memstore"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/schema"
	"github.com/ssargent/recordkit/pkg/storage"
	"github.com/ssargent/recordkit/pkg/value"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
	maxBodyBytes = 1 << 20
)

// Server holds the API server state
type Server struct {
	catalog *catalog.Catalog
	config  ServerConfig
	metrics *Metrics
	sets    *recordSets
	log     *logger.Logger
}

// NewServer creates a new API server over the views of c
func NewServer(c *catalog.Catalog, config ServerConfig, metrics *Metrics) (*Server, error) {
	log := logger.GetLogger("api")
	sets, err := newRecordSets(config.Paging, metrics, log.Named("recordset"))
	if err != nil {
		return nil, err
	}
	return &Server{
		catalog: c,
		config:  config,
		metrics: metrics,
		sets:    sets,
		log:     log,
	}, nil
}

// handleHealth reports the server as healthy. GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]interface{}{
		"status":      "healthy",
		"views":       len(s.catalog.Views()),
		"record_sets": s.sets.len(),
	})
}

// handleListViews lists the views. GET /views
func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	views := s.catalog.Views()
	infos := make([]ViewInfo, len(views))
	for i, v := range views {
		infos[i] = viewInfo(v)
	}
	sendSuccess(w, infos)
}

// handleGetView describes one view. GET /views/{view}
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	sendSuccess(w, viewInfo(store.View()))
}

// handleCount counts the records matching the where parameters.
// GET /views/{view}/count?where=...&or=true
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	criteria, err := criteriaFromQuery(store.View(), r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	n, err := store.Count(r.Context(), criteria)
	s.metrics.RecordOperation(store.View().Name, "count", err, start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, CountResponse{View: store.View().Name, Count: n})
}

// handleListRecords returns a page of records.
// GET /views/{view}/records?offset=0&limit=50&where=...&or=true
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	criteria, err := criteriaFromQuery(store.View(), r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, limit, err := pagingFromQuery(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sendPage(w, r, store, criteria, offset, limit)
}

// handleQuery returns a page of records selected by a JSON request.
// POST /views/{view}/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	criteria, err := req.build(store.View())
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Offset < 0 {
		sendError(w, "offset must not be negative", http.StatusBadRequest)
		return
	}
	s.sendPage(w, r, store, criteria, req.Offset, clampLimit(req.Limit))
}

func (s *Server) sendPage(w http.ResponseWriter, r *http.Request, store catalog.Store, criteria *query.Criteria, offset, limit int64) {
	view := store.View().Name
	set, err := s.sets.get(store, criteria)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	start := time.Now()
	set.mu.Lock()
	total, err := set.rs.Size(r.Context())
	var records []*schema.Record
	if err == nil {
		records, err = set.rs.Page(r.Context(), offset, limit)
	}
	stats := set.rs.Stats()
	set.mu.Unlock()
	s.metrics.RecordOperation(view, "page", err, start)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sendSuccess(w, RecordsPage{
		View:     view,
		Criteria: criteria.String(),
		Offset:   offset,
		Limit:    limit,
		Total:    total,
		Records:  records,
		Stats:    stats,
	})
}

// handleInsert adds a record. POST /views/{view}/records
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r, store.View())
	if !ok {
		return
	}

	start := time.Now()
	id, err := store.Insert(r.Context(), rec)
	s.metrics.RecordOperation(store.View().Name, "insert", err, start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sets.refresh(store.View().Name)
	sendCreated(w, InsertResponse{ID: id.String()})
}

// handleGetRecord returns a record by id. GET /views/{view}/records/{id}
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	start := time.Now()
	rec, err := store.Get(r.Context(), id)
	s.metrics.RecordOperation(store.View().Name, "get", err, start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendSuccess(w, rec)
}

// handleUpdate replaces a record. PUT /views/{view}/records/{id}
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r, store.View())
	if !ok {
		return
	}

	start := time.Now()
	err := store.Update(r.Context(), id, rec)
	s.metrics.RecordOperation(store.View().Name, "update", err, start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sets.refresh(store.View().Name)
	sendSuccess(w, map[string]string{"status": "updated"})
}

// handleDelete removes a record. DELETE /views/{view}/records/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	start := time.Now()
	err := store.Delete(r.Context(), id)
	s.metrics.RecordOperation(store.View().Name, "delete", err, start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sets.refresh(store.View().Name)
	sendSuccess(w, map[string]string{"status": "deleted"})
}

func (s *Server) store(w http.ResponseWriter, r *http.Request) (catalog.Store, bool) {
	name := chi.URLParam(r, "view")
	store, ok := s.catalog.Store(name)
	if !ok {
		sendError(w, "View not found: "+name, http.StatusNotFound)
	}
	return store, ok
}

// fail sends err with the status its cause maps to
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Fetch(r.Context(), "api").Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	sendError(w, err.Error(), status)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, memstore.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, memstore.ErrDuplicateKey), errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, query.ErrInvalidCondition),
		errors.Is(err, schema.ErrFieldNotFound),
		errors.Is(err, schema.ErrMissingValue),
		errors.Is(err, value.ErrWrongKind),
		errors.Is(err, value.ErrNotComparable):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (req QueryRequest) build(view *schema.View) (*query.Criteria, error) {
	criteria := query.NewCriteria()
	if req.Criteria != nil {
		c, err := req.Criteria.Build(view.Fields)
		if err != nil {
			return nil, err
		}
		criteria = c
	}
	if len(req.Where) > 0 {
		where, err := query.ParseCriteria(view.Fields, req.Where, req.Or)
		if err != nil {
			return nil, err
		}
		criteria = query.And(criteria, where)
	}
	return criteria, nil
}

func criteriaFromQuery(view *schema.View, r *http.Request) (*query.Criteria, error) {
	q := r.URL.Query()
	or, _ := strconv.ParseBool(q.Get("or"))
	return query.ParseCriteria(view.Fields, q["where"], or)
}

func pagingFromQuery(r *http.Request) (offset, limit int64, err error) {
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.ParseInt(v, 10, 64)
		if err != nil || offset < 0 {
			return 0, 0, errors.Errorf("invalid offset %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, 0, errors.Errorf("invalid limit %q", v)
		}
	}
	return offset, clampLimit(limit), nil
}

func clampLimit(limit int64) int64 {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func recordID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := ksuid.Parse(raw)
	if err != nil {
		sendError(w, "Invalid record id: "+raw, http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

func decodeRecord(w http.ResponseWriter, r *http.Request, view *schema.View) (*schema.Record, bool) {
	var data map[string]any
	if err := decodeBody(w, r, &data); err != nil {
		sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	rec, err := schema.DecodeRecord(view.Fields, data)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return rec, true
}

// decodeBody reads a JSON body keeping numbers exact
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}
