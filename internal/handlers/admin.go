package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scholarport/backend/internal/services"
)

type AdminHandler struct {
	adminService services.AdminService
}

func NewAdminHandler(adminService services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (ah *AdminHandler) ListProfiles(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	profiles, total, err := ah.adminService.ListProfiles(c.Request.Context(), limit, offset)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, gin.H{
		"profiles": profiles,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (ah *AdminHandler) Stats(c *gin.Context) {
	stats, err := ah.adminService.Stats(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, stats)
}

func (ah *AdminHandler) Export(c *gin.Context) {
	rows, err := ah.adminService.ExportRows(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, gin.H{"rows": rows, "count": len(rows)})
}
