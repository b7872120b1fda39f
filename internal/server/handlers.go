package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/imageprocessing"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/orchestrator"
	"github.com/rmitchellscott/chatsnap/internal/rendering"
	"github.com/rmitchellscott/chatsnap/internal/sse"
	"github.com/rmitchellscott/chatsnap/internal/storage"
	"github.com/rmitchellscott/chatsnap/internal/utils"
	"github.com/rmitchellscott/chatsnap/internal/version"
)

// targetPayload is the wire form of rendering.Target. Image is a base64
// encoded PNG or JPEG when the client already rendered the mockup; ImageURL
// points at one.
type targetPayload struct {
	Name     string `json:"name"`
	HTML     string `json:"html"`
	Selector string `json:"selector"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Image    []byte `json:"image"`
	ImageURL string `json:"imageUrl"`
}

type exportPayload struct {
	SessionID string         `json:"sessionId"`
	Request   export.Request `json:"request"`
	Target    targetPayload  `json:"target"`
}

func (s *Server) target(ctx context.Context, p targetPayload) (rendering.Target, error) {
	t := rendering.Target{
		Name:     p.Name,
		HTML:     p.HTML,
		Selector: p.Selector,
		Width:    p.Width,
		Height:   p.Height,
	}
	if t.Name == "" {
		t.Name = "chat"
	}
	switch {
	case len(p.Image) > 0:
		img, _, err := imageprocessing.DecodeImage(bytes.NewReader(p.Image))
		if err != nil {
			return rendering.Target{}, err
		}
		t.Raster = img
	case p.ImageURL != "":
		if err := s.deps.URLPolicy.Validate(ctx, p.ImageURL); err != nil {
			return rendering.Target{}, err
		}
		img, _, err := imageprocessing.LoadImageFromURL(ctx, p.ImageURL, s.deps.Config.RenderTimeout)
		if err != nil {
			return rendering.Target{}, err
		}
		t.Raster = img
	}
	return t, t.Validate()
}

// remoteUnsupported rejects requests whose side effects would land on the
// server host instead of reaching the caller.
func remoteUnsupported(req export.Request, documentMode string) string {
	if req.Delivery == export.DeliverClipboard {
		return "Clipboard delivery is not available over the API"
	}
	if req.Format == export.FormatPDF && documentMode != "pdf" {
		return "pdf export over the API requires EXPORT_DOCUMENT_MODE=pdf"
	}
	return ""
}

// createExport starts an export on the caller's session and returns at once;
// progress and the result arrive on the session's event stream.
func (s *Server) createExport(c *gin.Context) {
	var payload exportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg := s.deps.Config
	req := payload.Request.WithDefaults(cfg.DefaultQuality, cfg.DefaultGIFQuality)
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := remoteUnsupported(req, cfg.DocumentMode); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	target, err := s.target(c.Request.Context(), payload.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target", "details": err.Error()})
		return
	}

	sessionID, orch := s.session(payload.SessionID)
	baseURL := utils.URLFromRequest(c.Request)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.exportTimeout)
	exportID, ok := orch.Start(ctx, payload.Request, target, func(result orchestrator.Result) {
		cancel()
		data := gin.H{"result": result}
		if result.Outcome == orchestrator.OutcomeSucceeded && result.Location != "" {
			download := *baseURL
			download.Path = "/api/exports/files/" + result.Filename
			data["url"] = download.String()
		}
		s.deps.Events.BroadcastToSession(sessionID, sse.Event{Type: "result", Data: data})
	})
	if !ok {
		cancel()
		c.JSON(http.StatusConflict, gin.H{
			"error":     "An export is already in progress for this session",
			"sessionId": sessionID,
			"state":     orch.State(),
		})
		return
	}

	logging.InfoWithComponent(logging.ComponentAPI, "Export accepted",
		"session_id", sessionID, "export_id", exportID, "format", payload.Request.Format, "ip", c.ClientIP())
	c.JSON(http.StatusAccepted, gin.H{
		"sessionId": sessionID,
		"exportId":  exportID,
		"events":    utils.AbsoluteURL(c.Request, fmt.Sprintf("/api/sessions/%s/events", sessionID)),
	})
}

func (s *Server) sessionState(c *gin.Context) {
	orch, ok := s.lookupSession(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": c.Param("id"), "state": orch.State()})
}

// sessionEvents streams a session's export events. The session need not
// exist yet; it is created on first export.
func (s *Server) sessionEvents(c *gin.Context) {
	sessionID := c.Param("id")
	client := s.deps.Events.AddClient(sessionID, c.Writer)
	if client == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to establish SSE connection"})
		return
	}
	if orch, ok := s.lookupSession(sessionID); ok {
		s.deps.Events.BroadcastToSession(sessionID, sse.Event{Type: "state", Data: gin.H{"state": orch.State()}})
	}
	s.deps.Events.Stream(c.Request.Context(), client)
}

// downloadFile serves an artifact previously written to the export sink.
func (s *Server) downloadFile(c *gin.Context) {
	name := c.Param("name")
	if err := storage.ValidateKey(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
		return
	}
	if s.deps.Storage == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No export storage configured"})
		return
	}

	rc, err := s.deps.Storage.Get(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
			return
		}
		logging.ErrorWithComponent(logging.ComponentAPI, "Failed to read export", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read export"})
		return
	}
	defer rc.Close()

	c.Header("Content-Type", contentType(name))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logging.WarnWithComponent(logging.ComponentAPI, "Failed to stream export", "name", name, "error", err)
	}
}

func contentType(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	f, ok := lo.Find(export.SupportedFormats(), func(f export.Format) bool { return f.Extension() == ext })
	if !ok {
		return "application/octet-stream"
	}
	return f.MIMEType()
}

func (s *Server) listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":      export.FormatNames(),
		"documentMode": s.deps.Config.DocumentMode,
	})
}

func (s *Server) health(c *gin.Context) {
	monitor := s.deps.Metrics.Monitor()
	if monitor == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	c.JSON(http.StatusOK, monitor.GetHealthStatus())
}

func (s *Server) version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
