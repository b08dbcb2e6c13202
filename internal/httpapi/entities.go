package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/internal/engine"
	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/internal/store"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

const maxBodySize = 1 << 20 // 1 MB

type sessionKey struct{}

type listResponse struct {
	Items []types.Record `json:"items"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type typeResponse struct {
	Name   string         `json:"name"`
	Table  string         `json:"table"`
	Fields []schema.Field `json:"fields"`
}

// sessionMiddleware opens one store session for the request and closes it
// when the handler returns.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Session(r.Context())
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		defer sess.Close()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *store.Session {
	sess, _ := ctx.Value(sessionKey{}).(*store.Session)
	return sess
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleListTypes(w http.ResponseWriter, r *http.Request) {
	ets := s.registry.Types()
	out := make([]typeResponse, len(ets))
	for i, et := range ets {
		out[i] = typeResponse{Name: et.Name(), Table: et.Table(), Fields: et.Fields()}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	et, ok := s.entityType(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	items, err := s.engine.List(r.Context(), sessionFrom(r.Context()), et, opts)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listResponse{Items: items})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	et, ok := s.entityType(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	n, err := s.engine.Count(r.Context(), sessionFrom(r.Context()), et, opts.Filters, opts.Sort)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	et, ok := s.entityType(w, r)
	if !ok {
		return
	}
	data, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.Create(r.Context(), sessionFrom(r.Context()), et, data)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	et, id, ok := s.entityAndID(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.Retrieve(r.Context(), sessionFrom(r.Context()), et, id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.handleWrite(w, r, s.engine.Update)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.handleWrite(w, r, s.engine.Patch)
}

type writeOp func(ctx context.Context, sess engine.Session, et *schema.EntityType, id uuid.UUID, data types.Record) (types.Record, error)

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request, op writeOp) {
	et, id, ok := s.entityAndID(w, r)
	if !ok {
		return
	}
	data, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	rec, err := op(r.Context(), sessionFrom(r.Context()), et, id, data)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	et, id, ok := s.entityAndID(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.Delete(r.Context(), sessionFrom(r.Context()), et, id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) entityType(w http.ResponseWriter, r *http.Request) (*schema.EntityType, bool) {
	et, err := s.registry.Lookup(chi.URLParam(r, "type"))
	if err != nil {
		s.writeErr(w, r, err)
		return nil, false
	}
	return et, true
}

func (s *Server) entityAndID(w http.ResponseWriter, r *http.Request) (*schema.EntityType, uuid.UUID, bool) {
	et, ok := s.entityType(w, r)
	if !ok {
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, fmt.Errorf("%w: %q", types.ErrInvalidID, chi.URLParam(r, "id")))
		return nil, uuid.Nil, false
	}
	return et, id, true
}

// decodeRecord reads a JSON object body. Numbers are kept as json.Number so
// large integers survive.
func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (types.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var data types.Record
	if err := dec.Decode(&data); err != nil || data == nil {
		s.writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return nil, false
	}
	return data, true
}

// listOptions reads filter, sort, offset and limit query parameters. filter
// and sort carry the JSON wire form.
func listOptions(r *http.Request) (engine.ListOptions, error) {
	q := r.URL.Query()
	var (
		opts engine.ListOptions
		err  error
	)
	if opts.Filters, err = query.ParseFilters([]byte(q.Get("filter"))); err != nil {
		return opts, err
	}
	if opts.Sort, err = query.ParseSort([]byte(q.Get("sort"))); err != nil {
		return opts, err
	}
	if opts.Page.Offset, err = intParam(q.Get("offset")); err != nil {
		return opts, err
	}
	if opts.Page.Limit, err = intParam(q.Get("limit")); err != nil {
		return opts, err
	}
	return opts, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", types.ErrInvalidPage, s)
	}
	return n, nil
}
