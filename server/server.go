// Package server exposes event queries over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dgduncan/wheretogo"
	"github.com/dgduncan/wheretogo/export"
	"github.com/dgduncan/wheretogo/filters"
)

const (
	formatJSON = "json"
	formatICS  = "ics"
)

// parameters consumed by the handler and never forwarded to the source
var reserved = map[string]bool{
	"start":  true,
	"end":    true,
	"busy":   true,
	"format": true,
}

// EventGetter is satisfied by *wheretogo.Fetcher.
type EventGetter interface {
	GetEvents(ctx context.Context, start, end any, q wheretogo.Query, filters ...wheretogo.Filter) ([]wheretogo.Event, error)
}

type handler struct {
	events EventGetter
	logger *slog.Logger
}

// New returns an engine serving
//
//	GET /events?start=<date>&end=<date>[&busy=<date>/<date>...][&format=json|ics][&<param>=<value>...]
//
// Each busy interval is an appointment the returned events must not
// overlap. Any other parameter is forwarded to the source.
//
// If the 'logger' is nil, a no-op logger writing to io.Discard will be used.
func New(events EventGetter, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &handler{events: events, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/events", h.getEvents)

	return r
}

func (h *handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()

	h.logger.InfoContext(c.Request.Context(), "request handled",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

func (h *handler) getEvents(c *gin.Context) {
	format := c.DefaultQuery("format", formatJSON)
	if format != formatJSON && format != formatICS {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format %q", format)})
		return
	}

	appointments, err := parseBusy(c.QueryArray("busy"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	overlap, err := filters.NewOverlapFilter(appointments...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	overlap = overlap.WithLogger(h.logger)

	q := wheretogo.Query{}
	for k, v := range c.Request.URL.Query() {
		if reserved[k] {
			continue
		}
		q[k] = v
	}

	events, err := h.events.GetEvents(c.Request.Context(), c.Query("start"), c.Query("end"), q, overlap)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if format == formatICS {
		var buf bytes.Buffer
		if err := export.WriteICal(&buf, events); err != nil {
			h.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
		return
	}

	if events == nil {
		events = []wheretogo.Event{}
	}
	c.JSON(http.StatusOK, events)
}

func (h *handler) writeError(c *gin.Context, err error) {
	var (
		pe *wheretogo.ParseError
		te *wheretogo.TransportError
	)

	switch {
	case errors.As(err, &pe), errors.Is(err, wheretogo.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &te):
		h.logger.WarnContext(c.Request.Context(), "source request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "error getting events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseBusy reads appointments written as <start>/<end>.
func parseBusy(values []string) ([]filters.Appointment, error) {
	appointments := make([]filters.Appointment, 0, len(values))
	for _, v := range values {
		start, end, ok := strings.Cut(v, "/")
		if !ok || start == "" || end == "" {
			return nil, fmt.Errorf("busy interval %q: expected <start>/<end>", v)
		}
		appointments = append(appointments, filters.Appointment{Start: start, End: end})
	}
	return appointments, nil
}
