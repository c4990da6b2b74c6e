package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stitchflow/labelrelay/internal/core"
	"github.com/stitchflow/labelrelay/internal/label"
	"github.com/stitchflow/labelrelay/internal/store"
	"github.com/stitchflow/labelrelay/internal/telemetry"
)

type LabelRequest struct {
	DisplayID  string `json:"displayId"`
	ClientName string `json:"clientName"`
	ItemType   string `json:"itemType"`
}

type CreateJobRequest struct {
	PrinterID      string       `json:"printerId"`
	OrderID        string       `json:"orderId"`
	IdempotencyKey string       `json:"idempotencyKey"`
	Source         string       `json:"source"`
	Label          LabelRequest `json:"label"`
}

type JobStatusResponse struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
}

type JobHandler struct {
	store    store.JobStore
	registry store.PrinterRegistry
	encoder  label.Encoder
	logger   *slog.Logger
}

func NewJobHandler(jobs store.JobStore, registry store.PrinterRegistry, encoder label.Encoder, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		store:    jobs,
		registry: registry,
		encoder:  encoder,
		logger:   logger.With("component", "jobs_api"),
	}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.OrderID == "" {
		writeDomainError(c, &core.ValidationError{Field: "orderId", Reason: "required"})
		return
	}
	if req.IdempotencyKey == "" {
		writeDomainError(c, &core.ValidationError{Field: "idempotencyKey", Reason: "required"})
		return
	}
	if req.Label.DisplayID == "" {
		writeDomainError(c, &core.ValidationError{Field: "label.displayId", Reason: "required"})
		return
	}
	if req.Label.ClientName == "" {
		writeDomainError(c, &core.ValidationError{Field: "label.clientName", Reason: "required"})
		return
	}
	if req.Label.ItemType == "" {
		writeDomainError(c, &core.ValidationError{Field: "label.itemType", Reason: "required"})
		return
	}

	source := req.Source
	if source == "" {
		source = core.DefaultSource
	}

	printer, err := resolvePrinter(c, h.registry, req.PrinterID)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	if !printer.SourceAllowed(source) {
		writeDomainError(c, core.ErrSourceNotAllowed)
		return
	}

	payload := h.encoder.Encode(label.LogicalLabel{
		DisplayID:  req.Label.DisplayID,
		ClientName: req.Label.ClientName,
		ItemType:   req.Label.ItemType,
	})

	job, created, err := h.store.EnqueueJob(c.Request.Context(), store.EnqueueParams{
		CreatedBy:      c.ClientIP(),
		Source:         source,
		OrderID:        req.OrderID,
		PrinterID:      printer.ID,
		Payload:        payload,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.logger.Error("enqueue failed", "order_id", req.OrderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	if created {
		telemetry.JobsEnqueued.Inc()
		h.logger.Info("job enqueued", "job_id", job.ID, "printer_id", printer.ID, "order_id", req.OrderID)
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, JobStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		LastError: job.LastError,
	})
}

// resolvePrinter picks the target printer for a submission: the explicitly
// requested one, else the configured default. The resolved printer must be
// enabled and speak the raw protocol.
func resolvePrinter(c *gin.Context, registry store.PrinterRegistry, printerID string) (*core.Printer, error) {
	ctx := c.Request.Context()

	id := printerID
	if id == "" {
		defaultID, err := registry.DefaultID(ctx)
		if err != nil {
			return nil, err
		}
		if defaultID == "" {
			return nil, core.ErrDefaultPrinterMissing
		}
		id = defaultID
	}

	printer, err := registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			return nil, core.ErrPrinterUnavailable
		}
		return nil, err
	}
	if !printer.Enabled {
		return nil, core.ErrPrinterUnavailable
	}
	if printer.Protocol != core.ProtocolRaw {
		return nil, core.ErrUnsupportedProtocol
	}

	return printer, nil
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/print-jobs", h.CreateJob)
	r.GET("/print-jobs/:id", h.GetJob)
}
