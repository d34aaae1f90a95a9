package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/response"
)

// @Summary      Create Client
// @Tags         Clients
// @Accept       json
// @Produce      json
// @Param        request body crm.ClientInput true "Client"
// @Success      200  {object}  handlers.RespClient
// @Router       /api/v1/clients [post]
func ApiCreateClient(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.ClientInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		cl, err := svc.CreateClient(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(cl))
	}
}

// @Summary      List Clients
// @Description  Clients ordered by creation time, newest first.
// @Tags         Clients
// @Produce      json
// @Param        status query string false "active or inactive"
// @Param        name   query string false "exact name"
// @Param        offset query int    false "offset"
// @Param        limit  query int    false "page size (default 50)"
// @Success      200  {object}  handlers.RespClientList
// @Router       /api/v1/clients [get]
func ApiListClients(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f crm.ClientFilter
		if err := c.ShouldBindQuery(&f); err != nil {
			badRequest(c, err)
			return
		}
		items, total, err := svc.ListClients(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListResponse[*models.Client]{Items: items, Total: total}))
	}
}

// @Summary      Get Client
// @Description  A client with its subscriptions and the number of open tickets.
// @Tags         Clients
// @Produce      json
// @Param        id path string true "Client ID"
// @Success      200  {object}  handlers.RespClientDetail
// @Router       /api/v1/clients/{id} [get]
func ApiGetClient(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := svc.GetClient(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(detail))
	}
}

// @Summary      Update Client
// @Tags         Clients
// @Accept       json
// @Produce      json
// @Param        id      path string          true "Client ID"
// @Param        request body crm.ClientPatch true "Fields to change"
// @Success      200  {object}  handlers.RespClient
// @Router       /api/v1/clients/{id} [patch]
func ApiUpdateClient(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.ClientPatch
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		cl, err := svc.UpdateClient(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(cl))
	}
}

// @Summary      Delete Client
// @Description  Deletes the client and its subscriptions, lines, orders, tickets and timeline.
// @Tags         Clients
// @Produce      json
// @Param        id path string true "Client ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/clients/{id} [delete]
func ApiDeleteClient(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Client Timeline
// @Description  Timeline events of a client, newest first.
// @Tags         Clients
// @Produce      json
// @Param        id     path  string true  "Client ID"
// @Param        offset query int    false "offset"
// @Param        limit  query int    false "page size (default 50)"
// @Success      200  {object}  handlers.RespTimeline
// @Router       /api/v1/clients/{id}/timeline [get]
func ApiListTimeline(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var page crm.Page
		if err := c.ShouldBindQuery(&page); err != nil {
			badRequest(c, err)
			return
		}
		events, err := svc.ListTimeline(c.Request.Context(), c.Param("id"), page)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(events))
	}
}

func RegisterClientRoutes(r gin.IRouter, svc *crm.Service) {
	r.POST("", ApiCreateClient(svc))
	r.GET("", ApiListClients(svc))
	r.GET("/:id", validID, ApiGetClient(svc))
	r.PATCH("/:id", validID, ApiUpdateClient(svc))
	r.DELETE("/:id", validID, ApiDeleteClient(svc))
	r.GET("/:id/timeline", validID, ApiListTimeline(svc))
}
