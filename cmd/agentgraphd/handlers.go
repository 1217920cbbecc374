package main

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/types"
)

// tenantHeader carries the caller's tenant on every API request.
const tenantHeader = "X-Tenant-ID"

func (s *Server) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := r.Header.Get(tenantHeader)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "missing "+tenantHeader+" header")
		return "", false
	}
	return tenant, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch types.GetErrorCode(err) {
	case types.ErrGraphNotFound, types.ErrRunNotFound:
		status = http.StatusNotFound
	case types.ErrInvalidRequest, types.ErrTopology:
		status = http.StatusBadRequest
	case types.ErrInvalidTransition:
		status = http.StatusConflict
	case types.ErrStoreUnavailable, types.ErrBusUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var def graph.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid graph definition: "+err.Error())
		return
	}
	def.TenantID = tenant

	g, err := def.Build()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.SaveGraph(r.Context(), g); err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Info("graph registered",
		zap.String("tenant_id", tenant),
		zap.String("graph_id", g.ID()),
		zap.Int("plans", g.PlanCount()),
		zap.Int("tasks", g.TaskCount()),
	)
	writeJSON(w, http.StatusCreated, g.Definition())
}

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	graphs, err := s.store.ListGraphs(r.Context(), tenant)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defs := make([]graph.Definition, 0, len(graphs))
	for _, g := range graphs {
		defs = append(defs, g.Definition())
	}
	writeJSON(w, http.StatusOK, map[string]any{"graphs": defs})
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	g, err := s.store.GetGraph(r.Context(), tenant, r.PathValue("graphID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Definition())
}

func (s *Server) handleActivateGraph(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	g, err := s.composer.ActivateGraph(r.Context(), tenant, r.PathValue("graphID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Definition())
}

func (s *Server) handleArchiveGraph(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	g, err := s.composer.ArchiveGraph(r.Context(), tenant, r.PathValue("graphID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Definition())
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	gr, err := s.composer.SubmitRun(r.Context(), tenant, r.PathValue("graphID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, gr)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	runs, err := s.store.ListRuns(r.Context(), tenant, r.PathValue("graphID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	gr, err := s.composer.CancelRun(r.Context(), tenant, r.PathValue("lifetimeID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gr)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	tl, err := s.timeline.Timeline(r.Context(), tenant, r.PathValue("graphID"), r.PathValue("lifetimeID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// handleIngestExecution accepts one execution record from a node
// executor, persists it, applies it to the owning run, and routes the
// downstream node inputs. Routing drops are absorbed inside the
// pipeline; only store and bus failures surface here.
func (s *Server) handleIngestExecution(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var rec types.ExecutionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid execution record: "+err.Error())
		return
	}
	rec.Header.TenantID = tenant
	if !rec.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be PLAN or TASK")
		return
	}
	switch rec.Header.Status {
	case types.ExecutionSucceeded, types.ExecutionFailed:
	default:
		writeError(w, http.StatusBadRequest, "status must be SUCCEEDED or FAILED")
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	ctx := r.Context()
	if err := s.store.SaveExecution(ctx, rec); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.lifecycle.OnExecutionPersisted(ctx, rec); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.router.RouteExecution(ctx, rec); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"exec_id": rec.Header.ExecID,
		"status":  "accepted",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	healthy := true

	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_time": BuildTime,
	})
}
