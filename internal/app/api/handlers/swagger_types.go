package handlers

import (
	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/app/service/importer"
	"github.com/fatflowers/iptv-crm/internal/app/service/statistics"
	"github.com/fatflowers/iptv-crm/internal/app/service/sweep"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/response"
)

// Envelope types below exist for the generated API docs only.

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespClient struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Client            `json:"data"`
}

type RespClientList struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    ListResponse[*models.Client] `json:"data"`
}

type RespClientDetail struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    crm.ClientDetail         `json:"data"`
}

type RespTimeline struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.TimelineEvent   `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    crm.SubscriptionView     `json:"data"`
}

type RespSubscriptionList struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    ListResponse[*crm.SubscriptionView] `json:"data"`
}

type RespTicket struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Ticket            `json:"data"`
}

type RespTicketList struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    ListResponse[*models.Ticket] `json:"data"`
}

type RespOrder struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Order             `json:"data"`
}

type RespOrderList struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    ListResponse[*models.Order] `json:"data"`
}

type RespOrderResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    crm.OrderResult          `json:"data"`
}

type RespImportPreview struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    importer.Preview         `json:"data"`
}

type RespImportResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    importer.Result          `json:"data"`
}

type RespDashboard struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Dashboard     `json:"data"`
}

type RespSweepReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    sweep.Report             `json:"data"`
}

type RespClassify struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ClassifyResponse         `json:"data"`
}

type RespCatalog struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    CatalogResponse          `json:"data"`
}
