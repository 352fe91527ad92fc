package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"orgsetup/internal/api/middleware"
	"orgsetup/internal/executor"
	"orgsetup/internal/models"
	"orgsetup/internal/picklist"
	"orgsetup/internal/progress"
	"orgsetup/internal/reconcile"
	"orgsetup/internal/store"
	"orgsetup/pkg/response"
)

// Submitter queues runs. *executor.Executor satisfies it.
type Submitter interface {
	Submit(req executor.Request) (string, <-chan *executor.Result, error)
	Running() []string
}

type Runs struct {
	Executor Submitter
	Store    store.RunStore
}

type RunAccepted struct {
	RunID string        `json:"run_id"`
	Kind  executor.Kind `json:"kind"`
}

// StartStateCountry takes the two CSV files as multipart fields country_csv
// and state_csv. Input that fails the validation gate is rejected here,
// before anything is queued.
func (h *Runs) StartStateCountry(c *gin.Context) {
	mode := c.DefaultPostForm("mode", "load")
	screenshots, _ := strconv.ParseBool(c.DefaultPostForm("screenshots", "false"))
	strict, _ := strconv.ParseBool(c.DefaultPostForm("strict", "false"))

	req := executor.Request{Trigger: "api", Screenshots: screenshots, Strict: strict}
	switch mode {
	case "validate":
		req.Kind = executor.KindPicklistValidate
	case "load":
		req.Kind = executor.KindStateCountry
		countries, err := readUploads(c)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.Countries = countries
	default:
		response.BadRequest(c, fmt.Sprintf("unknown mode %q", mode))
		return
	}
	h.submit(c, req)
}

func readUploads(c *gin.Context) ([]picklist.Country, error) {
	countries, err := parseUpload(c, "country_csv", picklist.ParseCountries)
	if err != nil {
		return nil, err
	}
	states, err := parseUpload(c, "state_csv", picklist.ParseStates)
	if err != nil {
		return nil, err
	}
	return picklist.Join(countries, states)
}

func parseUpload[T any](c *gin.Context, field string, parse func(string, io.Reader) ([]T, error)) ([]T, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s is required", field)
	}
	return parseMultipart(header, parse)
}

func parseMultipart[T any](header *multipart.FileHeader, parse func(string, io.Reader) ([]T, error)) ([]T, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(header.Filename, f)
}

// StartEmailDeliverability accepts an optional JSON body of email options.
// Omitted fields keep their defaults.
func (h *Runs) StartEmailDeliverability(c *gin.Context) {
	opts := reconcile.DefaultEmailOptions()
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, err.Error())
			return
		}
	}
	switch opts.AccessLevel {
	case reconcile.AccessNone, reconcile.AccessSystemOnly, reconcile.AccessAllEmail:
	default:
		response.BadRequest(c, fmt.Sprintf("unknown access level %q", opts.AccessLevel))
		return
	}
	h.submit(c, executor.Request{Kind: executor.KindEmailDeliverability, Trigger: "api", Email: &opts})
}

func (h *Runs) submit(c *gin.Context, req executor.Request) {
	runID, _, err := h.Executor.Submit(req)
	switch {
	case errors.Is(err, executor.ErrQueueFull):
		response.TooManyRequests(c, err.Error())
		return
	case errors.Is(err, executor.ErrStopped):
		response.ServiceUnavailable(c, err.Error())
		return
	case err != nil:
		response.InternalServerError(c, err.Error())
		return
	}
	log.Info().Str("run_id", runID).Str("kind", string(req.Kind)).Str("user", c.GetString(middleware.UsernameKey)).Msg("📝 Run submitted over API")
	response.Accepted(c, "run queued", RunAccepted{RunID: runID, Kind: req.Kind})
}

func (h *Runs) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	opts := store.ListOptions{Page: page, PageSize: pageSize, Status: c.Query("status"), Kind: c.Query("kind")}

	runs, total, err := h.Store.List(c.Request.Context(), opts)
	if err != nil {
		response.InternalServerError(c, "failed to list runs")
		return
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	response.Page(c, runs, total, page, pageSize)
}

func (h *Runs) Get(c *gin.Context) {
	run, ok := h.load(c)
	if !ok {
		return
	}
	response.Success(c, run)
}

func (h *Runs) Records(c *gin.Context) {
	run, ok := h.load(c)
	if !ok {
		return
	}
	var records []reconcile.Record
	if err := run.GetRecords(&records); err != nil {
		response.InternalServerError(c, "failed to decode records")
		return
	}
	response.Success(c, gin.H{"records": records})
}

func (h *Runs) Logs(c *gin.Context) {
	run, ok := h.load(c)
	if !ok {
		return
	}
	var events []progress.Event
	if err := run.GetLogs(&events); err != nil {
		response.InternalServerError(c, "failed to decode logs")
		return
	}
	response.Success(c, gin.H{"logs": events})
}

// Screenshot serves one of the files the run recorded, looked up by base
// name. Nothing outside the run's list is reachable.
func (h *Runs) Screenshot(c *gin.Context) {
	run, ok := h.load(c)
	if !ok {
		return
	}
	paths, err := run.GetScreenshots()
	if err != nil {
		response.InternalServerError(c, "failed to decode screenshots")
		return
	}
	name := c.Param("name")
	for _, p := range paths {
		if filepath.Base(p) == name {
			c.File(p)
			return
		}
	}
	response.NotFound(c, "screenshot not found")
}

// Active lists the runs the executor is working on.
func (h *Runs) Active(c *gin.Context) {
	response.Success(c, gin.H{"running": h.Executor.Running()})
}

func (h *Runs) load(c *gin.Context) (*models.Run, bool) {
	run, err := h.Store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "run not found")
		return nil, false
	}
	if err != nil {
		response.InternalServerError(c, "failed to load run")
		return nil, false
	}
	return run, true
}
