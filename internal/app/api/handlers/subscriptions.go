package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/pkg/response"
)

// @Summary      Create Subscription
// @Description  Start date defaults to today; end date is derived from the plan when omitted.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request body crm.SubscriptionInput true "Subscription"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions [post]
func ApiCreateSubscription(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.SubscriptionInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		view, err := svc.CreateSubscription(c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

// @Summary      List Subscriptions
// @Description  Subscriptions with client, lines and derived status, latest end date first.
// @Tags         Subscriptions
// @Produce      json
// @Param        client_id query string false "Client ID"
// @Param        status    query string false "active, expiring_soon or expired"
// @Param        active    query bool   false "active flag"
// @Param        offset    query int    false "offset"
// @Param        limit     query int    false "page size (default 50)"
// @Success      200  {object}  handlers.RespSubscriptionList
// @Router       /api/v1/subscriptions [get]
func ApiListSubscriptions(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f crm.SubscriptionFilter
		if err := c.ShouldBindQuery(&f); err != nil {
			badRequest(c, err)
			return
		}
		items, total, err := svc.ListSubscriptions(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListResponse[*crm.SubscriptionView]{Items: items, Total: total}))
	}
}

// @Summary      Get Subscription
// @Tags         Subscriptions
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id} [get]
func ApiGetSubscription(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.GetSubscription(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

// @Summary      Update Subscription
// @Description  Changing plan or start recomputes the end date unless one is given. A lines list replaces every line.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        id      path string                true "Subscription ID"
// @Param        request body crm.SubscriptionPatch true "Fields to change"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id} [patch]
func ApiUpdateSubscription(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.SubscriptionPatch
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		view, err := svc.UpdateSubscription(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

// @Summary      Delete Subscription
// @Tags         Subscriptions
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/{id} [delete]
func ApiDeleteSubscription(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteSubscription(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Renew Subscription
// @Description  Extends the subscription by N months starting from the later of end+1 and today.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        id      path string         true "Subscription ID"
// @Param        request body crm.RenewInput true "Renewal"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/renew [post]
func ApiRenewSubscription(svc *crm.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req crm.RenewInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		view, err := svc.RenewSubscription(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *crm.Service) {
	r.POST("", ApiCreateSubscription(svc))
	r.GET("", ApiListSubscriptions(svc))
	r.GET("/:id", validID, ApiGetSubscription(svc))
	r.PATCH("/:id", validID, ApiUpdateSubscription(svc))
	r.DELETE("/:id", validID, ApiDeleteSubscription(svc))
	r.POST("/:id/renew", validID, ApiRenewSubscription(svc))
}
