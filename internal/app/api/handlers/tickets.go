package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/response"
)

// @Summary      Open Ticket
// @Tags         Tickets
// @Accept       json
// @Produce      json
// @Param        request body crm.TicketInput true "Ticket"
// @Success      200  {object}  handlers.RespTicket
// @Router       /api/v1/tickets [post]
func ApiCreateTicket(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.TicketInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, err := svc.CreateTicket(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(t))
	}
}

// @Summary      List Tickets
// @Tags         Tickets
// @Produce      json
// @Param        client_id query string false "Client ID"
// @Param        status    query string false "open, in_progress or resolved"
// @Param        offset    query int    false "offset"
// @Param        limit     query int    false "page size (default 50)"
// @Success      200  {object}  handlers.RespTicketList
// @Router       /api/v1/tickets [get]
func ApiListTickets(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f crm.TicketFilter
		if err := c.ShouldBindQuery(&f); err != nil {
			badRequest(c, err)
			return
		}
		items, total, err := svc.ListTickets(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListResponse[*models.Ticket]{Items: items, Total: total}))
	}
}

// @Summary      Get Ticket
// @Tags         Tickets
// @Produce      json
// @Param        id path string true "Ticket ID"
// @Success      200  {object}  handlers.RespTicket
// @Router       /api/v1/tickets/{id} [get]
func ApiGetTicket(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svc.GetTicket(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(t))
	}
}

// @Summary      Update Ticket
// @Description  Resolving a ticket stamps resolved_at; any other status clears it.
// @Tags         Tickets
// @Accept       json
// @Produce      json
// @Param        id      path string          true "Ticket ID"
// @Param        request body crm.TicketPatch true "Fields to change"
// @Success      200  {object}  handlers.RespTicket
// @Router       /api/v1/tickets/{id} [patch]
func ApiUpdateTicket(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.TicketPatch
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, err := svc.UpdateTicket(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(t))
	}
}

// @Summary      Delete Ticket
// @Tags         Tickets
// @Produce      json
// @Param        id path string true "Ticket ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/tickets/{id} [delete]
func ApiDeleteTicket(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteTicket(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterTicketRoutes(r gin.IRouter, svc *crm.Service) {
	r.POST("", ApiCreateTicket(svc))
	r.GET("", ApiListTickets(svc))
	r.GET("/:id", validID, ApiGetTicket(svc))
	r.PATCH("/:id", validID, ApiUpdateTicket(svc))
	r.DELETE("/:id", validID, ApiDeleteTicket(svc))
}
