// Package export writes subscriptions as CSV in the same layout the importer
// recognizes.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"go.uber.org/fx"

	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
)

var Header = []string{"cliente", "plan_mesi", "dispositivo", "mac", "m3u", "inizio", "fine", "prezzo", "linee", "stato"}

type Service struct {
	crm *crm.Service
}

func NewService(crmSvc *crm.Service) *Service {
	return &Service{crm: crmSvc}
}

// Subscriptions writes every subscription, latest end date first.
func (s *Service) Subscriptions(ctx context.Context, w io.Writer) (int, error) {
	views, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(views), Write(w, views)
}

// Load fetches the rows Write expects, so callers can fail before any output.
func (s *Service) Load(ctx context.Context) ([]*crm.SubscriptionView, error) {
	return s.crm.AllSubscriptions(ctx)
}

func Write(w io.Writer, views []*crm.SubscriptionView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, v := range views {
		client := ""
		if v.Client != nil {
			client = v.Client.Name
		}
		if err := cw.Write([]string{
			client,
			strconv.Itoa(v.PlanMonths),
			v.Device,
			v.MAC,
			v.M3UURL,
			lifecycle.FormatDate(v.StartDate),
			lifecycle.FormatDate(v.EndDate),
			v.Price.StringFixed(2),
			strings.Join(v.LineNames(), ", "),
			string(v.Status),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var Module = fx.Options(
	fx.Provide(NewService),
)
