// Package api serves the extractor over HTTP.
package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightdelivered/statement-extractor/internal/banks"
	"github.com/insightdelivered/statement-extractor/internal/extract"
	"github.com/insightdelivered/statement-extractor/internal/extractor"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
)

// ExtractRequest is the JSON body of POST /api/extract.
type ExtractRequest struct {
	Filename string   `json:"filename"`
	Text     string   `json:"text"`
	Banks    []string `json:"banks"`
}

// ExtractResponse is returned by POST /api/extract. Unrecognized
// documents are not request failures; they come back with Success set and
// the reason in Errors.
type ExtractResponse struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Items   []*models.Item   `json:"items"`
	Errors  []*extract.Error `json:"errors"`
	Count   int              `json:"count"`
}

// ExtractorFactory returns the extractor for the named rule sets, or the
// configured default set when names is empty.
type ExtractorFactory func(names []string) (*extract.Extractor, error)

// Handler holds the HTTP handlers for the API.
type Handler struct {
	NewExtractor ExtractorFactory
	Version      string
	Logger       *slog.Logger
}

// Options configure the fiber application.
type Options struct {
	// BodyLimit caps request bodies in bytes.
	BodyLimit int
	// Metrics is exposed on /metrics when set.
	Metrics *prometheus.Registry
}

// NewApp builds the fiber application with all routes mounted.
func NewApp(h *Handler, opts Options) *fiber.App {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	app := fiber.New(fiber.Config{
		AppName:               "statement-extractor",
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(h.logRequests)

	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/extract", h.HandleExtract)
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
	}
	return app
}

// HandleHealth returns the service status.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": h.Version,
		"engine":  "fiber",
	})
}

// HandleExtract runs the extractor over one document, given either as a
// JSON body with the text or as a multipart upload in field "file".
func (h *Handler) HandleExtract(c *fiber.Ctx) error {
	var (
		doc   *parser.Document
		names []string
		err   error
	)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		doc, names, err = readUpload(c)
	} else {
		doc, names, err = readJSON(c)
	}
	if err != nil {
		return err
	}

	e, err := h.NewExtractor(names)
	if err != nil {
		var unknown *banks.UnknownError
		if errors.As(err, &unknown) {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s; known banks: %s", err, strings.Join(banks.Names(), ", ")))
		}
		return err
	}

	res := e.Extract(doc)
	resp := ExtractResponse{
		Success: true,
		Items:   res.Items,
		Errors:  res.Errors,
		Count:   len(res.Items),
	}
	// nil marshals to null, not []
	if resp.Items == nil {
		resp.Items = []*models.Item{}
	}
	if resp.Errors == nil {
		resp.Errors = []*extract.Error{}
	}
	return c.JSON(resp)
}

func readJSON(c *fiber.Ctx) (*parser.Document, []string, error) {
	var req ExtractRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "text is required; upload a file in form field 'file' or send {\"text\": ...}")
	}
	if req.Filename == "" {
		req.Filename = "document.txt"
	}
	return parser.NewDocument(req.Filename, req.Text), req.Banks, nil
}

func readUpload(c *fiber.Ctx) (*parser.Document, []string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "no file uploaded; use form field 'file'")
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}

	doc, err := extractor.FromBytes(header.Filename, data)
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return doc, splitNames(c.FormValue("bank")), nil
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(strings.ToLower(n)); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func (h *Handler) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}

	level := slog.LevelInfo
	if status >= fiber.StatusInternalServerError {
		level = slog.LevelError
	}
	h.Logger.LogAttrs(c.UserContext(), level, "request",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ExtractResponse{
		Success: false,
		Error:   err.Error(),
	})
}
