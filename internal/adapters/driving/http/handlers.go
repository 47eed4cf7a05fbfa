package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// multipartOverhead is the slack allowed on top of the upload limit for
// multipart boundaries and part headers
const multipartOverhead = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse lists the result of every dependency check
// @Description Readiness report
type ReadyResponse struct {
	Status string             `json:"status" example:"ready"`
	Checks map[string]string  `json:"checks,omitempty"`
	Queue  *driven.QueueStats `json:"queue,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ExtensionsResponse lists the accepted upload extensions
type ExtensionsResponse struct {
	Extensions []string `json:"extensions" example:"txt,jpg,jpeg,wav"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Liveness check, does not touch any dependency
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, queue, storage backend and embedding service and reports the queue backlog
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse  "A dependency is down"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
		return
	}

	checks, healthy := s.health.Health(r.Context())
	resp := ReadyResponse{Status: "ready", Checks: checks}
	if stats, err := s.health.QueueStats(r.Context()); err == nil {
		resp.Queue = stats
	} else {
		s.logger.Warn("queue stats unavailable", "error", err)
	}
	if !healthy {
		resp.Status = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleListExtensions godoc
// @Summary      Allowed file extensions
// @Description  Lists the file extensions accepted by the upload endpoint
// @Tags         Content
// @Produce      json
// @Success      200  {object}  ExtensionsResponse
// @Router       /extensions [get]
func (s *Server) handleListExtensions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ExtensionsResponse{Extensions: s.contentService.AllowedExtensions()})
}

// Content endpoints

// handleUpload godoc
// @Summary      Upload content
// @Description  Stores a file and enqueues its embedding. The content stays pending until a worker indexes it.
// @Tags         Content
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "File to upload"
// @Success      201   {object}  driving.UploadResult
// @Failure      400   {object}  ErrorResponse  "Missing file or unsupported extension"
// @Failure      401   {object}  ErrorResponse  "Unauthorized"
// @Failure      413   {object}  ErrorResponse  "File too large"
// @Failure      503   {object}  ErrorResponse  "Storage unavailable"
// @Router       /contents [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "missing file field")
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart body")
		}
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	result, err := s.contentService.Upload(r.Context(), ownerID(r), header.Filename, data)
	if err != nil {
		s.writeServiceError(w, r, err, "upload content")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleListContents godoc
// @Summary      List content
// @Tags         Content
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string   false  "pending, ready or failed"
// @Param        tag     query     boolean  false  "Filter by tag"
// @Param        limit   query     int      false  "Page size"
// @Param        offset  query     int      false  "Page offset"
// @Success      200     {array}   domain.Content
// @Failure      400     {object}  ErrorResponse  "Invalid filter"
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /contents [get]
func (s *Server) handleListContents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := domain.ContentFilter{
		Status: domain.ContentStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := q.Get("tag"); raw != "" {
		tag, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "tag must be true or false")
			return
		}
		filter.Tag = &tag
	}

	contents, err := s.contentService.List(r.Context(), ownerID(r), filter)
	if err != nil {
		s.writeServiceError(w, r, err, "list content")
		return
	}
	if contents == nil {
		contents = []*domain.Content{}
	}

	writeJSON(w, http.StatusOK, contents)
}

// handleGetContent godoc
// @Summary      Get content
// @Tags         Content
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Content ID"
// @Success      200  {object}  domain.Content
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Content not found"
// @Router       /contents/{id} [get]
func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.contentService.Get(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "get content")
		return
	}

	writeJSON(w, http.StatusOK, content)
}

type updateTagRequest struct {
	Tag *bool `json:"tag"`
}

// handleUpdateTag godoc
// @Summary      Update content tag
// @Tags         Content
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string            true  "Content ID"
// @Param        request  body      updateTagRequest  true  "New tag value"
// @Success      200      {object}  domain.Content
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      404      {object}  ErrorResponse  "Content not found"
// @Router       /contents/{id} [patch]
func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req updateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tag == nil {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	content, err := s.contentService.UpdateTag(r.Context(), ownerID(r), r.PathValue("id"), *req.Tag)
	if err != nil {
		s.writeServiceError(w, r, err, "update content")
		return
	}

	writeJSON(w, http.StatusOK, content)
}

// handleDeleteContent godoc
// @Summary      Delete content
// @Description  Removes the embedding, the stored bytes and the record
// @Tags         Content
// @Security     BearerAuth
// @Param        id   path  string  true  "Content ID"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Content not found"
// @Failure      503  {object}  ErrorResponse  "Storage unavailable"
// @Router       /contents/{id} [delete]
func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	if err := s.contentService.Delete(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, "delete content")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDownload godoc
// @Summary      Download content
// @Tags         Content
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id   path      string  true  "Content ID"
// @Success      200  {file}    file
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Content not found"
// @Failure      503  {object}  ErrorResponse  "Storage unavailable"
// @Router       /contents/{id}/download [get]
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	content, data, err := s.contentService.Download(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "download content")
		return
	}

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(content.OriginalFilename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": content.OriginalFilename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleThumbnail godoc
// @Summary      Image thumbnail
// @Description  Returns a 320x180 JPEG preview of image content, rendered on first request
// @Tags         Content
// @Produce      jpeg
// @Security     BearerAuth
// @Param        id   path      string  true  "Content ID"
// @Success      200  {file}    file
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Content not found or not an image"
// @Failure      503  {object}  ErrorResponse  "Storage unavailable"
// @Router       /contents/{id}/thumbnail [get]
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	data, err := s.contentService.Thumbnail(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "get thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleReindex godoc
// @Summary      Retry embedding
// @Description  Resets failed content to pending and enqueues a new embedding task
// @Tags         Content
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Content ID"
// @Success      202  {object}  driving.UploadResult
// @Failure      400  {object}  ErrorResponse  "Content is not failed"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Content not found"
// @Router       /contents/{id}/reindex [post]
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	result, err := s.contentService.Reindex(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "reindex content")
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// Search endpoints

type searchRequest struct {
	Query         string  `json:"query" example:"a dog on the beach"`
	Limit         int     `json:"limit,omitempty" example:"10"`
	MinSimilarity float64 `json:"min_similarity,omitempty" example:"0.2"`
}

// handleSearch godoc
// @Summary      Search content
// @Description  Embeds the query, ranks the caller's ready content by cosine similarity and records the query.
// @Description  A multipart/form-data body searches by files: every file in "files" and the optional "query" text are embedded and averaged.
// @Tags         Search
// @Accept       json
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      searchRequest  true  "Search query"
// @Success      201      {object}  domain.SearchOutcome
// @Failure      400      {object}  ErrorResponse  "Invalid request, missing query or unsupported file type"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      413      {object}  ErrorResponse  "Query file too large"
// @Failure      502      {object}  ErrorResponse  "Embedding service error"
// @Failure      503      {object}  ErrorResponse  "Embedding service unavailable"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		s.handleSearchFiles(w, r)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit < 0 || req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		writeError(w, http.StatusBadRequest, "limit must be positive and min_similarity within [0, 1]")
		return
	}

	opts := domain.SearchOptions{
		Limit:         req.Limit,
		MinSimilarity: req.MinSimilarity,
	}

	outcome, err := s.searchService.Search(r.Context(), ownerID(r), req.Query, opts)
	if err != nil {
		s.writeServiceError(w, r, err, "search")
		return
	}

	writeJSON(w, http.StatusCreated, outcome)
}

// handleSearchFiles serves the multipart form of POST /search
func (s *Server) handleSearchFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes*domain.MaxQueryFiles+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "query files too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	opts, err := parseSearchForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) > domain.MaxQueryFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d query files", domain.MaxQueryFiles))
		return
	}
	files := make([]domain.QueryFile, 0, len(headers))
	for _, h := range headers {
		if h.Size > s.maxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		data, err := readFormFile(h)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read query file")
			return
		}
		files = append(files, domain.QueryFile{Filename: h.Filename, Data: data})
	}

	outcome, err := s.searchService.SearchFiles(r.Context(), ownerID(r), r.FormValue("query"), files, opts)
	if err != nil {
		s.writeServiceError(w, r, err, "search")
		return
	}

	writeJSON(w, http.StatusCreated, outcome)
}

// History endpoints

// handleListQueries godoc
// @Summary      List past queries
// @Tags         History
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Page offset"
// @Success      200     {array}   domain.Query
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /queries [get]
func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	queries, err := s.historyService.ListQueries(r.Context(), ownerID(r), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err, "list queries")
		return
	}
	if queries == nil {
		queries = []*domain.Query{}
	}

	writeJSON(w, http.StatusOK, queries)
}

// handleGetQuery godoc
// @Summary      Get a past query
// @Description  Returns the stored ranking. Results whose content was deleted are kept and flagged unavailable.
// @Tags         History
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Query ID"
// @Success      200  {object}  domain.QueryWithResults
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Query not found"
// @Router       /queries/{id} [get]
func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	query, err := s.historyService.GetQuery(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "get query")
		return
	}

	writeJSON(w, http.StatusOK, query)
}

// handleDeleteQuery godoc
// @Summary      Delete a past query
// @Tags         History
// @Security     BearerAuth
// @Param        id   path  string  true  "Query ID"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Query not found"
// @Router       /queries/{id} [delete]
func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	if err := s.historyService.DeleteQuery(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, "delete query")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Task endpoints

// handleListTasks godoc
// @Summary      List background tasks
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "pending, processing, completed or failed"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Page offset"
// @Success      200     {array}   domain.Task
// @Failure      400     {object}  ErrorResponse  "Invalid filter"
// @Failure      401     {object}  ErrorResponse  "Unauthorized"
// @Router       /tasks [get]
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := domain.TaskStatus(r.URL.Query().Get("status"))

	tasks, err := s.taskService.ListTasks(r.Context(), ownerID(r), status, limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err, "list tasks")
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

// handleGetTask godoc
// @Summary      Get a background task
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskService.GetTask(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "get task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// handleCancelTask godoc
// @Summary      Cancel a background task
// @Description  Cancels a pending task. Content waiting on a cancelled embedding task is marked failed and can be reindexed.
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      400  {object}  ErrorResponse  "Task is no longer pending"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /tasks/{id}/cancel [post]
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskService.CancelTask(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "cancel task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Helper functions

// parseSearchForm reads limit and min_similarity from a multipart search form
func parseSearchForm(r *http.Request) (domain.SearchOptions, error) {
	var opts domain.SearchOptions
	if raw := r.FormValue("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, errors.New("limit must be a non-negative integer")
		}
		opts.Limit = limit
	}
	if raw := r.FormValue("min_similarity"); raw != "" {
		sim, err := strconv.ParseFloat(raw, 64)
		if err != nil || sim < 0 || sim > 1 {
			return opts, errors.New("min_similarity must be within [0, 1]")
		}
		opts.MinSimilarity = sim
	}
	return opts, nil
}

func readFormFile(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// parsePage reads the limit and offset query parameters. Missing values are zero.
func parsePage(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if limit, err = parseNonNegative(q.Get("limit")); err != nil {
		return 0, 0, errors.New("limit must be a non-negative integer")
	}
	if offset, err = parseNonNegative(q.Get("offset")); err != nil {
		return 0, 0, errors.New("offset must be a non-negative integer")
	}
	return limit, offset, nil
}

func parseNonNegative(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// writeServiceError maps a domain error onto a status code. Unclassified
// errors are logged and hidden behind a generic message.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnsupportedExtension),
		errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, domain.ErrServiceUnavailable):
		s.logger.Warn("dependency unavailable", "action", action, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrEmbeddingFailed),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrNotSupported):
		s.logger.Warn("embedding service error", "action", action, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "action", action, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
