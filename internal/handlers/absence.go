package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fokamtech/skolink-backend/internal/storage"
)

// AbsenceHandler serves the small REST surface over absence reports used by
// the web dashboard. Creating and moderating absences happens elsewhere.
type AbsenceHandler struct {
	store storage.Store
}

// NewAbsenceHandler creates a new absence handler.
func NewAbsenceHandler(store storage.Store) *AbsenceHandler {
	return &AbsenceHandler{store: store}
}

// GetRecentAbsences returns a guardian's most recent absence reports.
func (h *AbsenceHandler) GetRecentAbsences(c *fiber.Ctx) error {
	guardianID, err := strconv.ParseUint(c.Params("guardianID"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid guardian id",
		})
	}

	limit := c.QueryInt("limit", 5)
	if limit < 1 || limit > 50 {
		limit = 5
	}

	absences, err := h.store.GetRecentAbsences(uint(guardianID), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load absences",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"absences": absences,
	})
}
