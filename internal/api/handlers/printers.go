package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stitchflow/labelrelay/internal/core"
	"github.com/stitchflow/labelrelay/internal/label"
	"github.com/stitchflow/labelrelay/internal/store"
	"github.com/stitchflow/labelrelay/internal/telemetry"
)

const testJobSource = "test"

type UpsertPrinterRequest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	PublicHost     string   `json:"publicHost"`
	PublicPort     int      `json:"publicPort"`
	Protocol       string   `json:"protocol"`
	Enabled        *bool    `json:"enabled"`
	AllowedSources []string `json:"allowedSources"`
}

type PatchPrinterRequest struct {
	Name           *string   `json:"name"`
	PublicHost     *string   `json:"publicHost"`
	PublicPort     *int      `json:"publicPort"`
	Protocol       *string   `json:"protocol"`
	Enabled        *bool     `json:"enabled"`
	AllowedSources *[]string `json:"allowedSources"`
}

type PrinterResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	PublicHost     string   `json:"publicHost"`
	PublicPort     int      `json:"publicPort"`
	Protocol       string   `json:"protocol"`
	Enabled        bool     `json:"enabled"`
	AllowedSources []string `json:"allowedSources"`
}

type PrinterHandler struct {
	registry store.PrinterRegistry
	store    store.JobStore
	encoder  label.Encoder
	logger   *slog.Logger
}

func NewPrinterHandler(registry store.PrinterRegistry, jobs store.JobStore, encoder label.Encoder, logger *slog.Logger) *PrinterHandler {
	return &PrinterHandler{
		registry: registry,
		store:    jobs,
		encoder:  encoder,
		logger:   logger.With("component", "printers_api"),
	}
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	printers, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list printers"})
		return
	}

	defaultID, err := h.registry.DefaultID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read default printer"})
		return
	}

	resp := make([]PrinterResponse, 0, len(printers))
	for _, p := range printers {
		resp = append(resp, printerToResponse(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"printers":         resp,
		"defaultPrinterId": defaultID,
	})
}

func (h *PrinterHandler) UpsertPrinter(c *gin.Context) {
	var req UpsertPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	printer := &core.Printer{
		ID:             req.ID,
		Name:           req.Name,
		PublicHost:     req.PublicHost,
		PublicPort:     req.PublicPort,
		Protocol:       req.Protocol,
		Enabled:        enabled,
		AllowedSources: req.AllowedSources,
	}
	printer.Normalize()
	if err := printer.Validate(); err != nil {
		writeDomainError(c, err)
		return
	}

	if err := h.registry.Upsert(c.Request.Context(), printer); err != nil {
		writeDomainError(c, err)
		return
	}

	h.logger.Info("printer saved", "printer_id", printer.ID, "host", printer.PublicHost, "port", printer.PublicPort)
	c.JSON(http.StatusOK, printerToResponse(printer))
}

func (h *PrinterHandler) PatchPrinter(c *gin.Context) {
	var req PatchPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	printer, err := h.registry.Patch(c.Request.Context(), c.Param("id"), store.PrinterPatch{
		Name:           req.Name,
		PublicHost:     req.PublicHost,
		PublicPort:     req.PublicPort,
		Protocol:       req.Protocol,
		Enabled:        req.Enabled,
		AllowedSources: req.AllowedSources,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, printerToResponse(printer))
}

func (h *PrinterHandler) SetDefaultPrinter(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.SetDefault(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}

	h.logger.Info("default printer set", "printer_id", id)
	c.JSON(http.StatusOK, gin.H{"defaultPrinterId": id})
}

// CreateTestJob pushes a synthetic label through the normal enqueue path so
// operators can verify end-to-end reachability of a printer.
func (h *PrinterHandler) CreateTestJob(c *gin.Context) {
	printer, err := resolvePrinter(c, h.registry, c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}

	payload := h.encoder.Encode(label.LogicalLabel{
		DisplayID:  "TEST-0000",
		ClientName: "Connectivity Test",
		ItemType:   "test label",
	})

	job, created, err := h.store.EnqueueJob(c.Request.Context(), store.EnqueueParams{
		CreatedBy:      c.ClientIP(),
		Source:         testJobSource,
		OrderID:        "printer-test-" + printer.ID,
		PrinterID:      printer.ID,
		Payload:        payload,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		h.logger.Error("test job enqueue failed", "printer_id", printer.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue test job"})
		return
	}

	if created {
		telemetry.JobsEnqueued.Inc()
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}

func printerToResponse(p *core.Printer) PrinterResponse {
	sources := p.AllowedSources
	if sources == nil {
		sources = []string{}
	}
	return PrinterResponse{
		ID:             p.ID,
		Name:           p.Name,
		PublicHost:     p.PublicHost,
		PublicPort:     p.PublicPort,
		Protocol:       p.Protocol,
		Enabled:        p.Enabled,
		AllowedSources: sources,
	}
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printers", h.ListPrinters)
	r.POST("/printers", h.UpsertPrinter)
	r.PATCH("/printers/:id", h.PatchPrinter)
	r.POST("/printers/:id/default", h.SetDefaultPrinter)
	r.POST("/printers/:id/test", h.CreateTestJob)
}
