package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/dto"
	catalogapp "rentacar/internal/app/handlers/catalog"
	"rentacar/internal/app/queries"
)

// CatalogHandler serves the vehicle and customer read models and price quotes.
type CatalogHandler struct {
	Queries queries.Bus
	Limits  PageLimits
	Logger  *slog.Logger
}

type quoteRequest struct {
	VehicleID      string `json:"vehicle_id"`
	CategoryCode   string `json:"category_code"`
	PickupLocation string `json:"pickup_location"`
	PickupDate     string `json:"pickup_date"`
	ReturnDate     string `json:"return_date"`
}

func (h CatalogHandler) Vehicles(c *gin.Context) {
	minYear, maxYear, err := intRange(c.Query("min_year"), c.Query("max_year"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	minMileage, maxMileage, err := intRange(c.Query("min_mileage"), c.Query("max_mileage"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	from, err := optionalDate("available_from", c.Query("available_from"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	to, err := optionalDate("available_to", c.Query("available_to"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	size, err := h.Limits.resolve(c.Query("page_size"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := queries.Ask[catalogapp.VehiclesQuery, dto.Page[dto.Vehicle]](c.Request.Context(), h.Queries, catalogapp.VehiclesQuery{
		CategoryCode:  c.Query("category"),
		LocationCode:  c.Query("location"),
		Make:          c.Query("make"),
		Status:        c.Query("status"),
		MinYear:       minYear,
		MaxYear:       maxYear,
		MinMileage:    minMileage,
		MaxMileage:    maxMileage,
		AvailableFrom: from,
		AvailableTo:   to,
		SortField:     c.Query("sort"),
		Descending:    parseBool(c.Query("desc")),
		PageNumber:    parsePage(c.Query("page")),
		PageSize:      size,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) Customers(c *gin.Context) {
	minAge, maxAge, err := intRange(c.Query("min_age"), c.Query("max_age"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	size, err := h.Limits.resolve(c.Query("page_size"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := queries.Ask[catalogapp.CustomersQuery, dto.Page[dto.Customer]](c.Request.Context(), h.Queries, catalogapp.CustomersQuery{
		Name:       c.Query("name"),
		Email:      c.Query("email"),
		MinAge:     minAge,
		MaxAge:     maxAge,
		SortField:  c.Query("sort"),
		Descending: parseBool(c.Query("desc")),
		PageNumber: parsePage(c.Query("page")),
		PageSize:   size,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CatalogHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	pickup, err := requiredDate("pickup_date", req.PickupDate)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	ret, err := requiredDate("return_date", req.ReturnDate)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := queries.Ask[catalogapp.QuoteQuery, dto.QuoteDTO](c.Request.Context(), h.Queries, catalogapp.QuoteQuery{
		VehicleID:      req.VehicleID,
		CategoryCode:   req.CategoryCode,
		PickupLocation: req.PickupLocation,
		PickupDate:     pickup,
		ReturnDate:     ret,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ CatalogHTTP = CatalogHandler{}
