package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/deckscan/internal/application/scanning"
	"github.com/turtacn/deckscan/internal/infrastructure/ocr"
	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

// ScanHandler exposes the scanning service over HTTP.
type ScanHandler struct {
	service scanning.Service
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(service scanning.Service) *ScanHandler {
	return &ScanHandler{service: service}
}

// BatchEntry is one scan inside a batch request. Payload is an OCR document
// in Format; Fragments may be given instead.
type BatchEntry struct {
	ID        string          `json:"id,omitempty"`
	Format    string          `json:"format,omitempty"`
	Fragments []scan.Fragment `json:"fragments,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Detailed  bool            `json:"detailed,omitempty"`
}

// BatchRequest is the body of POST /api/v1/scans/batch.
type BatchRequest struct {
	Scans []BatchEntry `json:"scans"`
}

// BatchResponse is the answer to a batch request, one item per entry.
type BatchResponse struct {
	Items []*scanning.BatchItem `json:"items"`
}

// Scan handles POST /api/v1/scans. The body is an OCR document in the format
// named by the format query parameter. Clients that accept text/plain get the
// deck list instead of JSON.
func (h *ScanHandler) Scan(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeAppError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read request body"))
		return
	}
	if len(body) == 0 {
		writeAppError(c, errors.InputError("request body is empty"))
		return
	}

	res, err := h.service.Scan(c.Request.Context(), &scanning.ScanRequest{
		ID:       c.Query("id"),
		Format:   c.Query("format"),
		Payload:  body,
		Source:   scanning.SourceHTTP,
		Detailed: queryBool(c, "detailed"),
	})
	if err != nil {
		writeAppError(c, err)
		return
	}

	c.Header("X-Scan-ID", res.ScanID)
	if wantsText(c) {
		c.String(http.StatusOK, res.Deck.String())
		return
	}
	c.JSON(http.StatusOK, res)
}

// ScanBatch handles POST /api/v1/scans/batch.
func (h *ScanHandler) ScanBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed batch request"))
		return
	}

	reqs := make([]*scanning.ScanRequest, len(req.Scans))
	for i, e := range req.Scans {
		reqs[i] = &scanning.ScanRequest{
			ID:        e.ID,
			Format:    e.Format,
			Fragments: e.Fragments,
			Payload:   e.Payload,
			Source:    scanning.SourceHTTP,
			Detailed:  e.Detailed,
		}
	}

	items, err := h.service.ScanBatch(c.Request.Context(), reqs)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{Items: items})
}

// Engine handles GET /api/v1/engine.
func (h *ScanHandler) Engine(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}

// Formats handles GET /api/v1/formats.
func (h *ScanHandler) Formats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"formats": ocr.Formats()})
}

func wantsText(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/plain") && !strings.Contains(accept, "application/json")
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
