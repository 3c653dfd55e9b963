package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/parade-allocator/internal/allocation"
	"github.com/eugenenazirov/parade-allocator/internal/formation"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
	"github.com/eugenenazirov/parade-allocator/internal/storage"
)

// Request limits. A seat grid costs rows*columns cells, so the capacity
// bound also bounds every rendered contingent.
const (
	maxRequestBytes         = 1 << 20
	maxCapacity             = 10_000
	maxColumnWidth          = 500
	maxFormationContingents = 500
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler wires the allocator, roster and run store into HTTP handlers.
type Handler struct {
	allocator allocation.Allocator
	storage   storage.Storage
	runs      storage.RunStore
	logger    *zap.Logger

	defaults    allocation.Params
	columnWidth int
	clock       func() time.Time

	mu              sync.RWMutex
	groupsUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithDefaults sets the allocation parameters requests start from.
func WithDefaults(params allocation.Params) HandlerOption {
	return func(h *Handler) {
		h.defaults = params
	}
}

// WithColumnWidth sets the default formation column width.
func WithColumnWidth(width int) HandlerOption {
	return func(h *Handler) {
		h.columnWidth = width
	}
}

// WithHandlerLogger sets the logger used for solve diagnostics.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(alloc allocation.Allocator, store storage.Storage, runs storage.RunStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		allocator:   alloc,
		storage:     store,
		runs:        runs,
		logger:      zap.NewNop(),
		defaults:    allocation.DefaultParams(),
		columnWidth: formation.DefaultColumnWidth,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.groupsUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	_ = r
	groups, err := h.storage.GetGroups()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := groupsResponse{
		Groups:    groups,
		UpdatedAt: h.currentGroupsUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutGroups(w http.ResponseWriter, r *http.Request) {
	var req groupsRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	if err := h.storage.SetGroups(req.Groups); err != nil {
		if errors.Is(err, parade.ErrConfiguration) {
			writeError(w, http.StatusBadRequest, "Invalid groups", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markGroupsUpdated()

	groups, err := h.storage.GetGroups()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := groupsResponse{
		Groups:    groups,
		UpdatedAt: h.currentGroupsUpdatedAt(),
		Message:   "Groups updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "Invalid request", msg)
		return
	}

	groups := req.Groups
	if len(groups) == 0 {
		stored, err := h.storage.GetGroups()
		if err != nil {
			writeInternalError(w, err)
			return
		}
		groups = stored
	}
	params := req.apply(h.defaults)

	start := time.Now()
	alloc, err := h.allocator.Allocate(r.Context(), groups, params)
	elapsed := time.Since(start)
	if err != nil {
		h.logger.Warn("allocation failed",
			zap.Error(err),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
		writeAllocationError(w, err)
		return
	}

	run := storage.Run{
		Groups:     groups,
		Params:     params,
		Allocation: alloc,
		Elapsed:    elapsed,
		CreatedAt:  h.clock(),
	}
	id, err := h.runs.Save(run)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	run.ID = id

	w.Header().Set("Location", "/api/allocations/"+id)
	writeJSON(w, http.StatusOK, newRunResponse(run))
}

func (h *Handler) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(run))
}

func (h *Handler) handleGetFormation(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	width := h.columnWidth
	if raw := query.Get("width"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 || value > maxColumnWidth {
			writeError(w, http.StatusBadRequest, "Invalid request",
				fmt.Sprintf("width must be a positive integer no larger than %d", maxColumnWidth))
			return
		}
		width = value
	}

	text, err := composeFormation(run.Allocation.Contingents, query.Get("positions"), formation.Options{
		RowSize:     run.Params.RowSize,
		Capacity:    run.Params.Capacity,
		ColumnWidth: width,
	})
	if err != nil {
		writeAllocationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text+"\n")
}

func (h *Handler) handleComposeFormation(w http.ResponseWriter, r *http.Request) {
	var req formationRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	opts := formation.Options{
		RowSize:     h.defaults.RowSize,
		Capacity:    h.defaults.Capacity,
		ColumnWidth: h.columnWidth,
	}
	if req.RowSize != nil {
		opts.RowSize = *req.RowSize
	}
	if req.Capacity != nil {
		opts.Capacity = *req.Capacity
	}
	if req.ColumnWidth != nil {
		opts.ColumnWidth = *req.ColumnWidth
	}

	contingents, msg := req.contingents(opts)
	if msg != "" {
		writeError(w, http.StatusBadRequest, "Invalid request", msg)
		return
	}

	text, err := composeFormation(contingents, req.Positions, opts)
	if err != nil {
		writeAllocationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formationResponse{Formation: text, Contingents: len(contingents)})
}

// decodeBody reads a JSON payload of at most maxRequestBytes into v and
// writes the error response when it cannot. An empty body is accepted only
// when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, allowEmpty && errors.Is(err, io.EOF):
		return true
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
			fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit))
	default:
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
	}
	return false
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (storage.Run, bool) {
	run, err := h.runs.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "Not found", err.Error())
			return storage.Run{}, false
		}
		writeInternalError(w, err)
		return storage.Run{}, false
	}
	return run, true
}

func (h *Handler) currentGroupsUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.groupsUpdatedAt
}

func (h *Handler) markGroupsUpdated() {
	h.mu.Lock()
	h.groupsUpdatedAt = h.clock()
	h.mu.Unlock()
}

func composeFormation(contingents []parade.Contingent, rawPositions string, opts formation.Options) (string, error) {
	positions, err := formation.ParsePositions(rawPositions)
	if err != nil {
		return "", err
	}
	ordered, err := formation.Remap(contingents, positions)
	if err != nil {
		return "", err
	}
	return formation.Compose(ordered, opts), nil
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type groupsRequest struct {
	Groups []parade.Group `json:"groups"`
}

// allocateRequest overrides the configured defaults field by field.
type allocateRequest struct {
	Groups            []parade.Group `json:"groups,omitempty"`
	Capacity          *int           `json:"capacity,omitempty"`
	RowSize           *int           `json:"rowSize,omitempty"`
	StrictMinCapacity *int           `json:"strictMinCapacity,omitempty"`
	Alpha             *float64       `json:"alpha,omitempty"`
	Beta              *float64       `json:"beta,omitempty"`
	FixNumContingents *int           `json:"fixNumContingents,omitempty"`
	TimeLimitSeconds  *float64       `json:"timeLimitSeconds,omitempty"`
}

// validate rejects overrides that Params.Validate accepts but a request must
// not set: an unlimited solve or an oversized contingent.
func (req allocateRequest) validate() string {
	if req.TimeLimitSeconds != nil && *req.TimeLimitSeconds <= 0 {
		return "timeLimitSeconds must be positive"
	}
	if req.Capacity != nil && *req.Capacity > maxCapacity {
		return fmt.Sprintf("capacity must not exceed %d", maxCapacity)
	}
	return ""
}

func (req allocateRequest) apply(params allocation.Params) allocation.Params {
	if req.Capacity != nil {
		params.Capacity = *req.Capacity
	}
	if req.RowSize != nil {
		params.RowSize = *req.RowSize
	}
	if req.StrictMinCapacity != nil {
		params.StrictMinCapacity = *req.StrictMinCapacity
	}
	if req.Alpha != nil {
		params.Alpha = *req.Alpha
	}
	if req.Beta != nil {
		params.Beta = *req.Beta
	}
	if req.FixNumContingents != nil {
		params.FixNumContingents = *req.FixNumContingents
	}
	if req.TimeLimitSeconds != nil {
		params.TimeLimit = time.Duration(*req.TimeLimitSeconds * float64(time.Second))
	}
	params.Observer = nil
	return params
}

type contingentRequest struct {
	Assignments []parade.Assignment `json:"assignments"`
}

type formationRequest struct {
	Contingents []contingentRequest `json:"contingents"`
	Positions   string              `json:"positions,omitempty"`
	RowSize     *int                `json:"rowSize,omitempty"`
	Capacity    *int                `json:"capacity,omitempty"`
	ColumnWidth *int                `json:"columnWidth,omitempty"`
}

// contingents checks the layout options and the submitted contingents. It
// returns a message describing the first problem found.
func (req formationRequest) contingents(opts formation.Options) ([]parade.Contingent, string) {
	switch {
	case opts.RowSize <= 0 || opts.Capacity <= 0 || opts.ColumnWidth <= 0:
		return nil, "rowSize, capacity and columnWidth must be positive"
	case opts.Capacity > maxCapacity:
		return nil, fmt.Sprintf("capacity must not exceed %d", maxCapacity)
	case opts.RowSize > opts.Capacity:
		return nil, "rowSize must not exceed capacity"
	case opts.ColumnWidth > maxColumnWidth:
		return nil, fmt.Sprintf("columnWidth must not exceed %d", maxColumnWidth)
	case len(req.Contingents) == 0:
		return nil, "contingents must contain at least one contingent"
	case len(req.Contingents) > maxFormationContingents:
		return nil, fmt.Sprintf("at most %d contingents can be composed", maxFormationContingents)
	}

	out := make([]parade.Contingent, len(req.Contingents))
	for i, c := range req.Contingents {
		if len(c.Assignments) == 0 {
			return nil, fmt.Sprintf("contingent %d has no assignments", i+1)
		}
		total := 0
		for _, a := range c.Assignments {
			if a.Group == "" || a.Count <= 0 || a.Count > opts.Capacity {
				return nil, fmt.Sprintf("contingent %d: assignment needs a group and a count between 1 and %d", i+1, opts.Capacity)
			}
			total += a.Count
		}
		if total > opts.Capacity {
			return nil, fmt.Sprintf("contingent %d holds %d people, capacity is %d", i+1, total, opts.Capacity)
		}
		out[i] = parade.NewContingent(c.Assignments...)
	}
	return out, ""
}

type contingentResponse struct {
	Number       int                 `json:"number"`
	Total        int                 `json:"total"`
	Assignments  []parade.Assignment `json:"assignments"`
	Preallocated bool                `json:"preallocated"`
}

type runResponse struct {
	ID                string               `json:"id"`
	Status            string               `json:"status"`
	Objective         float64              `json:"objective"`
	Capacity          int                  `json:"capacity"`
	RowSize           int                  `json:"rowSize"`
	TotalPeople       int                  `json:"totalPeople"`
	Preallocated      int                  `json:"preallocated"`
	Contingents       []contingentResponse `json:"contingents"`
	Groups            []parade.Group       `json:"groups"`
	CalculationTimeMs int64                `json:"calculationTimeMs"`
	CreatedAt         time.Time            `json:"createdAt"`
}

func newRunResponse(run storage.Run) runResponse {
	alloc := run.Allocation
	contingents := make([]contingentResponse, len(alloc.Contingents))
	for i, c := range alloc.Contingents {
		contingents[i] = contingentResponse{
			Number:       i + 1,
			Total:        c.Total(),
			Assignments:  c.Assignments,
			Preallocated: i < alloc.Preallocated,
		}
	}
	return runResponse{
		ID:                run.ID,
		Status:            alloc.Status,
		Objective:         alloc.Objective,
		Capacity:          run.Params.Capacity,
		RowSize:           run.Params.RowSize,
		TotalPeople:       alloc.TotalPeople(),
		Preallocated:      alloc.Preallocated,
		Contingents:       contingents,
		Groups:            run.Groups,
		CalculationTimeMs: run.Elapsed.Milliseconds(),
		CreatedAt:         run.CreatedAt,
	}
}

type formationResponse struct {
	Formation   string `json:"formation"`
	Contingents int    `json:"contingents"`
}

type groupsResponse struct {
	Groups    []parade.Group `json:"groups"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Message   string         `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}

// writeAllocationError maps engine and composer errors to HTTP statuses.
func writeAllocationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, parade.ErrConfiguration), errors.Is(err, parade.ErrParse):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, parade.ErrModelInfeasible):
		writeError(w, http.StatusUnprocessableEntity, "Allocation infeasible", err.Error(),
			"Relax strictMinCapacity or fixNumContingents, or raise the capacity")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", err.Error())
	default:
		writeInternalError(w, err)
	}
}
