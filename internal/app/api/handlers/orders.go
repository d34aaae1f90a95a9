package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/response"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

type PayOrderRequest struct {
	PaymentMethod types.PaymentMethod `json:"payment_method"`
}

// @Summary      Create Order
// @Description  Finds or creates the client, then renews subscription_id when given or creates a new subscription, and records the sale.
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        request body crm.OrderInput true "Order"
// @Success      200  {object}  handlers.RespOrderResult
// @Router       /api/v1/orders [post]
func ApiCreateOrder(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.OrderInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.CreateOrder(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Orders
// @Tags         Orders
// @Produce      json
// @Param        client_id query string false "Client ID"
// @Param        paid      query bool   false "paid flag"
// @Param        offset    query int    false "offset"
// @Param        limit     query int    false "page size (default 50)"
// @Success      200  {object}  handlers.RespOrderList
// @Router       /api/v1/orders [get]
func ApiListOrders(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f crm.OrderFilter
		if err := c.ShouldBindQuery(&f); err != nil {
			badRequest(c, err)
			return
		}
		items, total, err := svc.ListOrders(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListResponse[*models.Order]{Items: items, Total: total}))
	}
}

// @Summary      Get Order
// @Tags         Orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders/{id} [get]
func ApiGetOrder(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(o))
	}
}

// @Summary      Mark Order Paid
// @Tags         Orders
// @Accept       json
// @Produce      json
// @Param        id      path string          true  "Order ID"
// @Param        request body PayOrderRequest false "Payment method"
// @Success      200  {object}  handlers.RespOrder
// @Router       /api/v1/orders/{id}/pay [post]
func ApiPayOrder(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PayOrderRequest
		// the body is optional
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
		o, err := svc.MarkOrderPaid(c.Request.Context(), c.Param("id"), req.PaymentMethod)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(o))
	}
}

func RegisterOrderRoutes(r gin.IRouter, svc *crm.Service) {
	r.POST("", ApiCreateOrder(svc))
	r.GET("", ApiListOrders(svc))
	r.GET("/:id", validID, ApiGetOrder(svc))
	r.POST("/:id/pay", validID, ApiPayOrder(svc))
}
