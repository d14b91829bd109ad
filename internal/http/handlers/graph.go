package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/http/response"
	"github.com/yungbote/neurobridge-cdg/internal/services"
)

const maxPatchBodyBytes = 1 << 20

type GraphHandler struct {
	cdg services.CDGService
}

func NewGraphHandler(cdg services.CDGService) *GraphHandler {
	return &GraphHandler{cdg: cdg}
}

// GET /api/graphs/:id
func (h *GraphHandler) GetGraph(c *gin.Context) {
	g, err := h.cdg.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"graph": g})
}

// POST /api/graphs/:id/patches
func (h *GraphHandler) ApplyPatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPatchBodyBytes)
	var patch types.GraphPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_patch", err)
		return
	}
	res, err := h.cdg.ApplyTurn(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/graphs/:id/patches?limit=N
func (h *GraphHandler) ListPatches(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	rows, err := h.cdg.ListPatches(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if rows == nil {
		rows = []*types.PatchLogEntry{}
	}
	response.RespondOK(c, gin.H{"patches": rows})
}
