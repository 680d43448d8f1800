package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	reservationsapp "rentacar/internal/app/handlers/reservations"
	"rentacar/internal/app/queries"
)

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Limits   PageLimits
	Logger   *slog.Logger
}

type createReservationRequest struct {
	VehicleID       string `json:"vehicle_id"`
	CustomerID      string `json:"customer_id"`
	PickupDate      string `json:"pickup_date"`
	ReturnDate      string `json:"return_date"`
	PickupLocation  string `json:"pickup_location"`
	DropoffLocation string `json:"dropoff_location"`
}

type cancelReservationRequest struct {
	Reason string `json:"reason"`
}

func (h ReservationHandler) Create(c *gin.Context) {
	var req createReservationRequest
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
	cmd := reservationsapp.CreateCommand{
		VehicleID:       req.VehicleID,
		CustomerID:      req.CustomerID,
		PickupDate:      pickup,
		ReturnDate:      ret,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	}
	result, err := commands.Dispatch[reservationsapp.CreateCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", "/api/v1/reservations/"+result.ID)
	c.JSON(http.StatusCreated, result)
}

func (h ReservationHandler) Get(c *gin.Context) {
	result, err := queries.Ask[reservationsapp.GetQuery, dto.Reservation](c.Request.Context(), h.Queries,
		reservationsapp.GetQuery{ReservationID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) Search(c *gin.Context) {
	query, err := h.searchQuery(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := queries.Ask[reservationsapp.SearchQuery, dto.Page[dto.Reservation]](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) searchQuery(c *gin.Context) (reservationsapp.SearchQuery, error) {
	from, err := optionalDate("pickup_from", c.Query("pickup_from"))
	if err != nil {
		return reservationsapp.SearchQuery{}, err
	}
	to, err := optionalDate("pickup_to", c.Query("pickup_to"))
	if err != nil {
		return reservationsapp.SearchQuery{}, err
	}
	minGross, err := optionalDecimal("min_price", c.Query("min_price"))
	if err != nil {
		return reservationsapp.SearchQuery{}, err
	}
	maxGross, err := optionalDecimal("max_price", c.Query("max_price"))
	if err != nil {
		return reservationsapp.SearchQuery{}, err
	}
	size, err := h.Limits.resolve(c.Query("page_size"))
	if err != nil {
		return reservationsapp.SearchQuery{}, err
	}
	return reservationsapp.SearchQuery{
		CustomerID:     c.Query("customer_id"),
		VehicleID:      c.Query("vehicle_id"),
		Statuses:       splitCSV(c.Query("status")),
		PickupLocation: c.Query("pickup_location"),
		PickupFrom:     from,
		PickupTo:       to,
		MinGross:       minGross,
		MaxGross:       maxGross,
		SortField:      c.Query("sort"),
		Descending:     parseBool(c.Query("desc")),
		PageNumber:     parsePage(c.Query("page")),
		PageSize:       size,
	}, nil
}

func (h ReservationHandler) Confirm(c *gin.Context) {
	h.transition(c, reservationsapp.ConfirmCommand{
		ReservationID:   c.Param("id"),
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	})
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	var req cancelReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}
	h.transition(c, reservationsapp.CancelCommand{
		ReservationID:   c.Param("id"),
		Reason:          strings.TrimSpace(req.Reason),
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	})
}

func (h ReservationHandler) Activate(c *gin.Context) {
	h.transition(c, reservationsapp.ActivateCommand{
		ReservationID:   c.Param("id"),
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	})
}

func (h ReservationHandler) Complete(c *gin.Context) {
	h.transition(c, reservationsapp.CompleteCommand{
		ReservationID:   c.Param("id"),
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	})
}

func (h ReservationHandler) transition(c *gin.Context, cmd reservationsapp.TransitionCommand) {
	if h.Commands == nil {
		respondError(c, h.Logger, commands.ErrNilBus)
		return
	}
	res, err := h.Commands.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	out, ok := res.(*dto.Reservation)
	if !ok || out == nil {
		respondError(c, h.Logger, errors.New("unexpected transition result"))
		return
	}
	c.JSON(http.StatusOK, out)
}

var _ ReservationHTTP = ReservationHandler{}
