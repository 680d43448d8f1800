package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/dto"
	availabilityapp "rentacar/internal/app/handlers/availability"
	"rentacar/internal/app/queries"
)

// AvailabilityHandler answers which vehicles are committed for a period.
type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Booked(c *gin.Context) {
	pickup, err := requiredDate("pickup", c.Query("pickup"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	ret, err := requiredDate("return", c.Query("return"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := queries.Ask[availabilityapp.BookedQuery, dto.Availability](c.Request.Context(), h.Queries, availabilityapp.BookedQuery{
		PickupDate: pickup,
		ReturnDate: ret,
		VehicleID:  c.Query("vehicle_id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
