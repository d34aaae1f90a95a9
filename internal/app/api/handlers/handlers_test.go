package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/app/service/export"
	"github.com/fatflowers/iptv-crm/internal/app/service/importer"
	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/app/service/statistics"
	"github.com/fatflowers/iptv-crm/internal/app/service/sweep"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/lock"
	"github.com/fatflowers/iptv-crm/internal/platform/notify"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/response"
)

var today = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

type envelope struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
}

type testAPI struct {
	t      *testing.T
	r      *gin.Engine
	stores *store.Stores
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := zap.NewNop().Sugar()
	cfg := &config.Config{
		Import: config.ImportConfig{PlaceholderClient: "Unknown", Concurrency: 1, MaxUploadMB: 1},
		Sweep: config.SweepConfig{
			OffsetsDays: []int{2, 7},
			LockTTLSec:  60,
			Template:    "Ciao {{.Name}}, scade il {{.EndDate}}.",
		},
	}
	stores := store.NewMemoryStores()
	engine := lifecycle.NewEngine(7, time.UTC).WithClock(func() time.Time { return today.Add(9 * time.Hour) })
	crmSvc := crm.NewService(l, stores, engine)
	sw, err := sweep.NewService(l, cfg, stores, engine, notify.NewWhatsAppMock(l), lock.Noop{})
	require.NoError(t, err)

	r := gin.New()
	v1 := r.Group("/api/v1")
	RegisterHealthRoutes(r)
	RegisterClientRoutes(v1.Group("/clients"), crmSvc)
	RegisterSubscriptionRoutes(v1.Group("/subscriptions"), crmSvc)
	RegisterTicketRoutes(v1.Group("/tickets"), crmSvc)
	RegisterOrderRoutes(v1.Group("/orders"), crmSvc)
	RegisterImportRoutes(v1.Group("/import"), importer.NewService(l, cfg, stores), cfg)
	RegisterReportRoutes(v1, statistics.NewService(stores, engine), export.NewService(crmSvc), sw, engine)
	return &testAPI{t: t, r: r, stores: stores}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	require.Equal(a.t, http.StatusOK, w.Code)
	return w
}

// call sends body as JSON and decodes the envelope; out may be nil.
func (a *testAPI) call(method, path string, body any, out any) envelope {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := a.do(req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	if out != nil && env.Code == response.APIResponseCodeOK {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (a *testAPI) upload(path, csv string, fields map[string]string, out any) envelope {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clienti.csv")
	require.NoError(a.t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(a.t, err)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := a.do(req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	if out != nil && env.Code == response.APIResponseCodeOK {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return env
}

type idOnly struct {
	ID string `json:"id"`
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	var data map[string]string
	env := a.call(http.MethodGet, "/healthz", nil, &data)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Equal(t, "ok", data["status"])
}

func TestClientRoutes(t *testing.T) {
	a := newTestAPI(t)

	var created idOnly
	env := a.call(http.MethodPost, "/api/v1/clients", map[string]any{"name": "Mario Rossi", "contact": "+39 333"}, &created)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.NotEmpty(t, created.ID)

	env = a.call(http.MethodPost, "/api/v1/clients", map[string]any{"name": ""}, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	var list struct {
		Items []idOnly `json:"items"`
		Total int64    `json:"total"`
	}
	a.call(http.MethodGet, "/api/v1/clients?status=active", nil, &list)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, created.ID, list.Items[0].ID)

	var patched struct {
		Name string `json:"name"`
	}
	env = a.call(http.MethodPatch, "/api/v1/clients/"+created.ID, map[string]any{"name": "Mario Bianchi"}, &patched)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Equal(t, "Mario Bianchi", patched.Name)

	var detail struct {
		Name          string   `json:"name"`
		Subscriptions []idOnly `json:"subscriptions"`
		OpenTickets   int64    `json:"open_tickets"`
	}
	a.call(http.MethodGet, "/api/v1/clients/"+created.ID, nil, &detail)
	require.Equal(t, "Mario Bianchi", detail.Name)
	require.Empty(t, detail.Subscriptions)

	var events []struct {
		EventType string `json:"event_type"`
	}
	a.call(http.MethodGet, "/api/v1/clients/"+created.ID+"/timeline", nil, &events)
	require.Len(t, events, 1)
	require.Equal(t, "client_created", events[0].EventType)

	env = a.call(http.MethodDelete, "/api/v1/clients/"+created.ID, nil, nil)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	env = a.call(http.MethodGet, "/api/v1/clients/"+created.ID, nil, nil)
	require.Equal(t, response.APIResponseCodeNotFound, env.Code)
}

func TestMalformedID(t *testing.T) {
	a := newTestAPI(t)
	env := a.call(http.MethodGet, "/api/v1/subscriptions/42", nil, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	require.Contains(t, string(env.Data), "must be a UUID")
}

func TestSubscriptionAndTicketRoutes(t *testing.T) {
	a := newTestAPI(t)
	var client idOnly
	a.call(http.MethodPost, "/api/v1/clients", map[string]any{"name": "Luca"}, &client)

	var sub struct {
		ID       string `json:"id"`
		EndDate  string `json:"end_date"`
		Status   string `json:"status"`
		DaysLeft int    `json:"days_left"`
		Lines    []struct {
			Name string `json:"name"`
		} `json:"lines"`
	}
	env := a.call(http.MethodPost, "/api/v1/subscriptions", map[string]any{
		"client_id":   client.ID,
		"plan_months": 1,
		"start_date":  "2024-05-11",
		"price":       "15.00",
		"lines":       []string{"Salotto", "Cucina"},
	}, &sub)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.True(t, strings.HasPrefix(sub.EndDate, "2024-06-10"))
	require.Equal(t, "expiring_soon", sub.Status)
	require.Equal(t, 7, sub.DaysLeft)
	require.Len(t, sub.Lines, 2)

	var list struct {
		Total int64 `json:"total"`
	}
	a.call(http.MethodGet, "/api/v1/subscriptions?status=expiring_soon", nil, &list)
	require.EqualValues(t, 1, list.Total)
	a.call(http.MethodGet, "/api/v1/subscriptions?status=expired", nil, &list)
	require.EqualValues(t, 0, list.Total)

	env = a.call(http.MethodPost, "/api/v1/subscriptions/"+sub.ID+"/renew", map[string]any{"months": 1}, &sub)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.True(t, strings.HasPrefix(sub.EndDate, "2024-07-10"))
	require.Equal(t, "active", sub.Status)

	env = a.call(http.MethodPost, "/api/v1/subscriptions/"+sub.ID+"/renew", map[string]any{"months": 0}, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	var ticket struct {
		ID         string  `json:"id"`
		Status     string  `json:"status"`
		ResolvedAt *string `json:"resolved_at"`
	}
	env = a.call(http.MethodPost, "/api/v1/tickets", map[string]any{"client_id": client.ID, "subject": "Buffering"}, &ticket)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.Equal(t, "open", ticket.Status)

	a.call(http.MethodPatch, "/api/v1/tickets/"+ticket.ID, map[string]any{"status": "resolved"}, &ticket)
	require.Equal(t, "resolved", ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)

	env = a.call(http.MethodDelete, "/api/v1/subscriptions/"+sub.ID, nil, nil)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	env = a.call(http.MethodDelete, "/api/v1/tickets/"+ticket.ID, nil, nil)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
}

func TestOrderRoutes(t *testing.T) {
	a := newTestAPI(t)

	var res struct {
		Order struct {
			ID   string `json:"id"`
			Paid bool   `json:"paid"`
		} `json:"order"`
		ClientCreated bool `json:"client_created"`
	}
	env := a.call(http.MethodPost, "/api/v1/orders", map[string]any{
		"client_name":    "Giulia",
		"contact":        "+39 347",
		"plan_months":    3,
		"price":          "30",
		"payment_method": "cash",
	}, &res)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.True(t, res.ClientCreated)
	require.False(t, res.Order.Paid)

	var order struct {
		Paid          bool   `json:"paid"`
		PaymentMethod string `json:"payment_method"`
	}
	env = a.call(http.MethodPost, "/api/v1/orders/"+res.Order.ID+"/pay", nil, &order)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.True(t, order.Paid)
	require.Equal(t, "cash", order.PaymentMethod)

	var list struct {
		Total int64 `json:"total"`
	}
	a.call(http.MethodGet, "/api/v1/orders?paid=true", nil, &list)
	require.EqualValues(t, 1, list.Total)
}

func TestImportRoutes(t *testing.T) {
	a := newTestAPI(t)
	csv := "Nome;Scadenza;Prezzo;Linee\nMario Rossi;2024-07-01;19,99;Salotto, Cucina\nAnna;2024-08-01;abc;\n"

	var preview importer.Preview
	env := a.upload("/api/v1/import/preview", csv, nil, &preview)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.Equal(t, "Nome", preview.Mapping[importer.TargetClient])
	require.Equal(t, "Scadenza", preview.Mapping[importer.TargetEnd])
	require.Equal(t, 2, preview.Total)
	require.False(t, preview.ClientUnmapped)

	var res importer.Result
	env = a.upload("/api/v1/import", csv, nil, &res)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.Equal(t, 1, res.Imported)
	require.Len(t, res.Failed, 1)
	require.Equal(t, 2, res.Failed[0].RowIndex)

	n, err := a.stores.Lines.Count(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestImport_UnmappedClientNeedsConfirmation(t *testing.T) {
	a := newTestAPI(t)
	csv := "Nome;Prezzo\nMario;10\n"
	unmap := map[string]string{"mapping": `{"client":""}`}

	var preview importer.Preview
	a.upload("/api/v1/import/preview", csv, unmap, &preview)
	require.True(t, preview.ClientUnmapped)

	env := a.upload("/api/v1/import", csv, unmap, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	var res importer.Result
	env = a.upload("/api/v1/import", csv, map[string]string{"mapping": `{"client":""}`, "allow_missing_client": "true"}, &res)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.Equal(t, 1, res.Imported)

	var clients struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	a.call(http.MethodGet, "/api/v1/clients", nil, &clients)
	require.Len(t, clients.Items, 1)
	require.Equal(t, "Unknown", clients.Items[0].Name)

	env = a.upload("/api/v1/import", csv, map[string]string{"mapping": `{"client":"Missing"}`}, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	env = a.upload("/api/v1/import", csv, map[string]string{"mapping": `not json`}, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestImport_EmptyFile(t *testing.T) {
	a := newTestAPI(t)
	var res importer.Result
	env := a.upload("/api/v1/import", "Nome;Prezzo\n", nil, &res)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.True(t, res.Empty)
	require.Zero(t, res.Imported)
	require.Empty(t, res.Failed)
}

func TestExportSubscriptions(t *testing.T) {
	a := newTestAPI(t)
	var client idOnly
	a.call(http.MethodPost, "/api/v1/clients", map[string]any{"name": "Mario Rossi"}, &client)
	a.call(http.MethodPost, "/api/v1/subscriptions", map[string]any{
		"client_id": client.ID, "plan_months": 1, "start_date": "2024-06-01", "price": "10", "lines": []string{"Salotto"},
	}, nil)

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/export/subscriptions.csv", nil))
	require.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, w.Header().Get("Content-Disposition"), "abbonamenti_2024-06-03.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Join(export.Header, ","), lines[0])
	require.Equal(t, "Mario Rossi,1,,,,2024-06-01,2024-06-30,10.00,Salotto,active", lines[1])
}

func TestExportSubscriptions_StoreFailure(t *testing.T) {
	a := newTestAPI(t)
	a.stores.Subscriptions.(*store.MemoryStore[models.Subscription]).FailOn = func(string, *models.Subscription) error {
		return errors.New("db down")
	}

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/v1/export/subscriptions.csv", nil))
	require.NotContains(t, w.Header().Get("Content-Type"), "text/csv")
	require.Empty(t, w.Header().Get("Content-Disposition"))
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, response.APIResponseCodeError, env.Code)
}

func TestClassify(t *testing.T) {
	a := newTestAPI(t)

	var res ClassifyResponse
	env := a.call(http.MethodGet, "/api/v1/lifecycle/classify?end_date=2024-06-10&ref=2024-06-03", nil, &res)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.Equal(t, "expiring_soon", string(res.Status))
	require.Equal(t, 7, res.DaysLeft)
	require.Equal(t, 7, res.ExpiringSoonDays)

	a.call(http.MethodGet, "/api/v1/lifecycle/classify?end_date=02/06/2024", nil, &res)
	require.Equal(t, "expired", string(res.Status))
	require.Equal(t, -1, res.DaysLeft)

	env = a.call(http.MethodGet, "/api/v1/lifecycle/classify", nil, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	env = a.call(http.MethodGet, "/api/v1/lifecycle/classify?end_date=yesterday", nil, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestSweepAndDashboard(t *testing.T) {
	a := newTestAPI(t)
	var client idOnly
	a.call(http.MethodPost, "/api/v1/clients", map[string]any{"name": "Mario Rossi", "contact": "+39 333"}, &client)
	for _, end := range []string{"2024-06-05", "2024-06-10", "2024-06-20", "2024-05-01"} {
		env := a.call(http.MethodPost, "/api/v1/subscriptions", map[string]any{
			"client_id": client.ID, "plan_months": 1, "start_date": "2024-04-01", "end_date": end, "price": "10",
		}, nil)
		require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	}

	var report sweep.Report
	env := a.call(http.MethodPost, "/api/v1/sweep/run?date=2024-06-03", nil, &report)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.Equal(t, 2, report.Matched)
	require.Equal(t, 2, report.Sent)
	require.Empty(t, report.Failed)

	var events []struct {
		EventType   string `json:"event_type"`
		Description string `json:"description"`
	}
	a.call(http.MethodGet, "/api/v1/clients/"+client.ID+"/timeline", nil, &events)
	alerts := 0
	for _, e := range events {
		if e.EventType == "alert_sent" {
			alerts++
		}
	}
	require.Equal(t, 2, alerts)

	var d statistics.Dashboard
	env = a.call(http.MethodGet, "/api/v1/stats/dashboard?date=2024-06-03", nil, &d)
	require.Equal(t, response.APIResponseCodeOK, env.Code, string(env.Data))
	require.EqualValues(t, 1, d.TotalClients)
	require.EqualValues(t, 3, d.ActiveSubscriptions)
	require.EqualValues(t, 2, d.ExpiringSubscriptions)
	require.EqualValues(t, 1, d.ExpiredSubscriptions)
	require.Equal(t, "2024-06-03", d.Reference)

	env = a.call(http.MethodPost, "/api/v1/sweep/run?date=nope", nil, nil)
	require.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestCatalog(t *testing.T) {
	a := newTestAPI(t)
	var c CatalogResponse
	a.call(http.MethodGet, "/api/v1/catalog", nil, &c)
	require.Equal(t, []int{1, 3, 6, 12}, c.PlanMonths)
	require.NotEmpty(t, c.Devices)
}
