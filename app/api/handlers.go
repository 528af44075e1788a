package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/donation-relay/app/channel"
	"github.com/lysyi3m/donation-relay/app/donation"
	"github.com/lysyi3m/donation-relay/app/metrics"
	"github.com/lysyi3m/donation-relay/app/stats"
	"github.com/lysyi3m/donation-relay/app/tasks"
)

func NewHandler(store Store, generator GeneratorInterface, configCache *channel.ConfigCache,
	scheduler tasks.TaskSchedulerInterface, taskFactory TaskFactory, m *metrics.Metrics, version string) *Handler {
	return &Handler{
		store:       store,
		generator:   generator,
		configCache: configCache,
		scheduler:   scheduler,
		taskFactory: taskFactory,
		metrics:     m,
		version:     version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	records, err := h.store.List(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_donations", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(records)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(records)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   h.version,
	}

	count, err := h.store.Count(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "count_donations", "error", err)
		health["status"] = "unavailable"
		health["error"] = "database unavailable"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	health["donations"] = count
	health["loaded_channels"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListDonations(c *gin.Context) {
	records, err := h.store.List(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_donations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	donations := make([]donationResponse, 0, len(records))
	for _, record := range records {
		donations = append(donations, newDonationResponse(record))
	}

	c.JSON(http.StatusOK, gin.H{
		"donations": donations,
		"total":     len(donations),
	})
}

func (h *Handler) APIGetDonation(c *gin.Context) {
	fingerprint := c.Param("fingerprint")

	record, err := h.store.Get(c.Request.Context(), fingerprint)
	if err != nil {
		slog.Error("Database error", "operation", "get_donation", "fingerprint", fingerprint, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
		return
	}

	c.JSON(http.StatusOK, newDonationResponse(*record))
}

func (h *Handler) APIDeleteDonation(c *gin.Context) {
	fingerprint := c.Param("fingerprint")

	deleted, err := h.store.Delete(c.Request.Context(), fingerprint)
	if err != nil {
		slog.Error("Database error", "operation", "delete_donation", "fingerprint", fingerprint, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
		return
	}

	slog.Info("Donation deleted", "fingerprint", fingerprint)
	c.JSON(http.StatusOK, gin.H{"success": true, "fingerprint": fingerprint})
}

func (h *Handler) APIGetStats(c *gin.Context) {
	summary, err := stats.Collect(c.Request.Context(), h.store, h.store, stats.Channels(h.configCache.Names()))
	if err != nil {
		slog.Error("Database error", "operation", "collect_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) APIIngest(c *gin.Context) {
	ingestTask := h.taskFactory.NewIngestTask()
	if err := h.scheduler.EnqueueTask(ingestTask); err != nil {
		slog.Error("Error enqueueing ingest task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue ingest task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   ingestTask.ID,
			"type": ingestTask.Type,
		},
	})
}

func (h *Handler) APIPublish(c *gin.Context) {
	name := c.Param("name")

	channelConfig, err := h.configCache.GetConfig(donation.Channel(name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel configuration not found"})
		return
	}

	opts := tasks.ScheduledOptions()
	opts.DryRun = c.Query("dry_run") == "true"

	publishTask, err := h.taskFactory.NewPublishTask(channelConfig, opts)
	if err != nil {
		slog.Error("Error creating publish task", "channel", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create publish task",
			"details": err.Error(),
		})
		return
	}

	if err := h.scheduler.EnqueueTask(publishTask); err != nil {
		slog.Error("Error enqueueing publish task", "channel", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue publish task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"channel": name,
		"dry_run": opts.DryRun,
		"task": gin.H{
			"id":   publishTask.ID,
			"type": publishTask.Type,
		},
	})
}
