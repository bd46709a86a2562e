package recon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"Recon340B/api"
	"Recon340B/api/constants"
	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/export"
	"Recon340B/internal/library"
	"Recon340B/internal/loader"
	"Recon340B/internal/logger"
	"Recon340B/internal/program"
	"Recon340B/internal/screens"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler serves the reconciliation endpoints. The library is optional;
// without it screens still run but nothing is stored.
type Handler struct {
	lib    *library.Service
	params config.Params
}

func NewHandler(lib *library.Service, params config.Params) *Handler {
	return &Handler{lib: lib, params: params}
}

func (h *Handler) library() (*library.Service, bool) {
	if h.lib == nil || h.lib.Catalog == nil {
		return nil, false
	}
	return h.lib, true
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Recon Service is active"))
}

type inputInfo struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Columns  []string `json:"columns,omitempty"`
}

type screenInfo struct {
	Name   string      `json:"name"`
	Title  string      `json:"title"`
	Inputs []inputInfo `json:"inputs"`
}

func (h *Handler) ListScreens(w http.ResponseWriter, r *http.Request) {
	all := screens.All()
	out := make([]screenInfo, 0, len(all))
	for _, s := range all {
		info := screenInfo{Name: s.Name, Title: s.Title}
		for _, i := range s.Inputs {
			info.Inputs = append(info.Inputs, inputInfo{
				Name: i.Name, Label: i.Label, Kind: i.Kind.String(), Required: i.Required,
				Columns: i.Schema.Required(),
			})
		}
		out = append(out, info)
	}
	api.RespondWithPayload(w, true, "", out)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// maxParallelParts bounds how many uploaded parts are parsed at once.
const maxParallelParts = 4

// parseInputs reads every uploaded part a screen declares. Parts are
// parsed concurrently; after the first failure, or once ctx is done, parts
// not yet started are skipped.
func parseInputs(ctx context.Context, s *screens.Screen, form *multipart.Form) (screens.Inputs, error) {
	in := screens.NewInputs()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelParts)
	for _, input := range s.Inputs {
		files := form.File[input.Name]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := readPart(fh)
			if err != nil {
				return fmt.Errorf("%s%s: %w", constants.ErrOpenUpload, fh.Filename, err)
			}
			format := loader.FormatFromFilename(fh.Filename)
			switch input.Kind {
			case screens.Book:
				wb, err := loader.OpenWorkbook(raw, format)
				if err != nil {
					return fmt.Errorf("%s: %w", input.Name, err)
				}
				mu.Lock()
				in.Workbooks[input.Name] = wb
				mu.Unlock()
			case screens.Document:
				mu.Lock()
				in.Documents[input.Name] = raw
				mu.Unlock()
			default:
				ds, err := loader.Load(input.Name, raw, format)
				if err != nil {
					return fmt.Errorf("%s: %w", input.Name, err)
				}
				mu.Lock()
				in.Tables[input.Name] = ds
				mu.Unlock()
			}
			return nil
		})
	}
	return in, g.Wait()
}

// RunScreen runs one screen over the uploaded parts and returns the
// requested view. Rows the screen marks for the library are stored first.
func (h *Handler) RunScreen(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["screen"]
	s, err := screens.Lookup(name)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrParseMultipart)
		return
	}
	in, err := parseInputs(r.Context(), s, r.MultipartForm)
	if err != nil {
		respondErr(w, err)
		return
	}

	start := time.Now()
	res, err := s.Run(in, h.params)
	if err != nil {
		respondErr(w, err)
		return
	}
	logger.L().Info("screen run",
		zap.String("screen", s.Name),
		zap.Int("rows", size(res.Report)),
		zap.Int("flagged", size(res.Flagged)),
		zap.Duration("elapsed", time.Since(start)))

	if lib, ok := h.library(); ok && res.Log != "" && res.LogRows != nil {
		n, err := lib.Catalog.AppendDataset(r.Context(), res.Log, res.LogRows)
		if err != nil {
			logger.L().Error("library append failed", zap.String("log", res.Log), zap.Error(err))
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrLibraryFailed)
			return
		}
		logger.Audit("library append", zap.String("log", res.Log), zap.Int("rows", n))
	}

	view := r.URL.Query().Get("view")
	ds, fileName, ok := res.View(view)
	if !ok {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrUnknownView+view)
		return
	}
	respondDataset(w, r.URL.Query().Get("format"), ds, fileName)
}

func size(ds *dataset.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.Len()
}

// respondDataset writes ds as a csv (default), xlsx or json response.
func respondDataset(w http.ResponseWriter, format string, ds *dataset.Dataset, fileName string) {
	switch format {
	case "", "csv":
		body, err := export.Export(ds, "csv")
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrExportFailed)
			return
		}
		attach(w, constants.ContentTypeCSV, fileName, body)
	case "xlsx":
		body, err := export.Workbook([]export.Sheet{{Name: ds.Name(), Data: ds}})
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrExportFailed)
			return
		}
		attach(w, constants.ContentTypeXLSX, strings.TrimSuffix(fileName, filepath.Ext(fileName))+".xlsx", body)
	case "json":
		api.RespondWithPayload(w, true, "", rowsOf(ds))
	default:
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrUnknownFormat+format)
	}
}

func attach(w http.ResponseWriter, contentType, fileName string, body []byte) {
	w.Header().Set(constants.HeaderCT, contentType)
	w.Header().Set(constants.HeaderCD, fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// rowsOf renders ds as JSON objects with every value in its export form.
func rowsOf(ds *dataset.Dataset) []map[string]string {
	rows := make([]map[string]string, ds.Len())
	for i := range rows {
		row := make(map[string]string, len(ds.Columns()))
		for _, c := range ds.Columns() {
			row[c] = dataset.Format(ds.Value(i, c))
		}
		rows[i] = row
	}
	return rows
}

// GetLog downloads a stored library log.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library()
	if !ok {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrLibraryOffline)
		return
	}
	name := mux.Vars(r)["log"]
	store, err := lib.Catalog.Log(r.Context(), name)
	if err != nil {
		respondErr(w, err)
		return
	}
	ds, err := store.ReadAll(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondDataset(w, r.URL.Query().Get("format"), ds.WithName(name), name+".csv")
}

// ImportLog appends the rows of an uploaded table to a library log, for
// logs such as provider_list that no screen writes.
func (h *Handler) ImportLog(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library()
	if !ok {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrLibraryOffline)
		return
	}
	if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrParseMultipart)
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrNoFileUploaded)
		return
	}
	raw, err := readPart(files[0])
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrOpenUpload+files[0].Filename)
		return
	}
	name := mux.Vars(r)["log"]
	ds, err := loader.Load(name, raw, loader.FormatFromFilename(files[0].Filename))
	if err != nil {
		respondErr(w, err)
		return
	}
	n, err := lib.Catalog.AppendDataset(r.Context(), name, ds)
	if err != nil {
		respondErr(w, err)
		return
	}
	logger.Audit("library import", zap.String("log", name), zap.Int("rows", n))
	api.RespondWithPayload(w, true, "", map[string]int{"appended": n})
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library()
	if !ok {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrLibraryOffline)
		return
	}
	if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrParseMultipart)
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrNoFileUploaded)
		return
	}
	raw, err := readPart(files[0])
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrOpenUpload+files[0].Filename)
		return
	}
	doc, err := lib.Documents.Save(r.Context(), files[0].Filename, r.FormValue("category"), raw)
	if err != nil {
		respondErr(w, err)
		return
	}
	logger.Audit("document archived", zap.String("file", doc.Filename), zap.String("category", doc.Category))
	api.RespondWithPayload(w, true, "", doc)
}

// ListDocuments returns the document index, optionally for one category.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library()
	if !ok {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrLibraryOffline)
		return
	}
	docs, err := lib.Documents.List(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	category := r.URL.Query().Get("category")
	out := make([]library.Document, 0, len(docs))
	for _, d := range docs {
		if category == "" || d.Category == category {
			out = append(out, d)
		}
	}
	api.RespondWithPayload(w, true, "", out)
}

// LatestDocument downloads the newest archived file of a category.
func (h *Handler) LatestDocument(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library()
	if !ok {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrLibraryOffline)
		return
	}
	category := r.URL.Query().Get("category")
	doc, err := lib.Documents.Latest(r.Context(), category)
	if errors.Is(err, library.ErrNotFound) {
		api.RespondWithError(w, http.StatusNotFound, constants.ErrDocumentNotFound+category)
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	raw, err := lib.Documents.Open(doc)
	if err != nil {
		respondErr(w, err)
		return
	}
	attach(w, "application/octet-stream", doc.Filename, raw)
}

type changeBody struct {
	ChangeType  string          `json:"change_type"`
	Description string          `json:"description"`
	GoLive      string          `json:"go_live"`
	Cost        decimal.Decimal `json:"estimated_cost"`
	Savings     decimal.Decimal `json:"estimated_savings"`
	RiskLevel   string          `json:"risk_level"`
	SubmittedBy string          `json:"submitted_by"`
}

// EvaluateChange scores a change request and appends it to the change log.
func (h *Handler) EvaluateChange(w http.ResponseWriter, r *http.Request) {
	var body changeBody
	if err := decodeJSON(r, &body); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	goLive, err := time.Parse(constants.DateFormat, body.GoLive)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "go_live must be "+constants.DateFormat)
		return
	}
	eval, err := program.Evaluate(program.ChangeRequest{
		ChangeType:  body.ChangeType,
		Description: body.Description,
		GoLive:      goLive,
		Cost:        body.Cost,
		Savings:     body.Savings,
		RiskLevel:   body.RiskLevel,
		SubmittedBy: body.SubmittedBy,
	}, h.params.TodayDate())
	if err != nil {
		respondErr(w, err)
		return
	}
	if lib, ok := h.library(); ok {
		store, err := lib.Catalog.Log(r.Context(), config.LogChangeEvaluation)
		if err == nil {
			_, err = store.Append(r.Context(), eval.LogRecord())
		}
		if err != nil {
			logger.L().Error("change log append failed", zap.Error(err))
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrLibraryFailed)
			return
		}
	}
	api.RespondWithPayload(w, true, "", eval)
}

type whatIfBody struct {
	Baseline *program.Baseline `json:"baseline"`
	Scenario *program.Scenario `json:"scenario"`
}

// WhatIf projects a savings scenario; format=csv downloads the summary.
func (h *Handler) WhatIf(w http.ResponseWriter, r *http.Request) {
	var body whatIfBody
	if err := decodeJSON(r, &body); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	baseline, scenario := program.DefaultBaseline(), program.DefaultScenario()
	if body.Baseline != nil {
		baseline = *body.Baseline
	}
	if body.Scenario != nil {
		scenario = *body.Scenario
	}
	p, err := program.Project(baseline, scenario)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if format := r.URL.Query().Get("format"); format != "" {
		respondDataset(w, format, p.Dataset(), "what_if_scenario_summary.csv")
		return
	}
	api.RespondWithPayload(w, true, "", p)
}

// Summary returns the dashboard metrics.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library()
	if !ok {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrLibraryOffline)
		return
	}
	m, err := lib.Catalog.Summarize(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	api.RespondWithPayload(w, true, "", m)
}

// auditSheets are the stored logs packed into an audit response.
var auditSheets = []struct{ sheet, log string }{
	{"Providers", config.LogProviders},
	{"Claims", config.LogComplianceFlags},
	{"Contracts", config.LogContractPharmacies},
	{"Sites", config.LogSiteCrosswalk},
}

// AuditResponse builds a workbook of the stored logs an auditor asks for.
func (h *Handler) AuditResponse(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.library()
	if !ok {
		api.RespondWithError(w, http.StatusServiceUnavailable, constants.ErrLibraryOffline)
		return
	}
	sheets := make([]export.Sheet, 0, len(auditSheets))
	for _, a := range auditSheets {
		store, err := lib.Catalog.Log(r.Context(), a.log)
		if err != nil {
			respondErr(w, err)
			return
		}
		ds, err := store.ReadAll(r.Context())
		if err != nil {
			respondErr(w, err)
			return
		}
		sheets = append(sheets, export.Sheet{Name: a.sheet, Data: ds})
	}
	body, err := export.Workbook(sheets)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrExportFailed)
		return
	}
	logger.Audit("audit response packet built")
	attach(w, constants.ContentTypeXLSX, "audit_response_packet.xlsx", body)
}
