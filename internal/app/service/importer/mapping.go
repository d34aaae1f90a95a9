package importer

import (
	"slices"
	"strings"

	"github.com/fatflowers/iptv-crm/pkg/errs"
)

// Target is a semantic field an import column can feed.
type Target string

const (
	TargetClient  Target = "client"
	TargetContact Target = "contact"
	TargetStart   Target = "start"
	TargetEnd     Target = "end"
	TargetPlan    Target = "plan"
	TargetPrice   Target = "price"
	TargetDevice  Target = "device"
	TargetMAC     Target = "mac"
	TargetM3U     Target = "m3u"
	TargetLines   Target = "lines"
)

type rule struct {
	target   Target
	keywords []string
}

// rules is evaluated top to bottom. A header taken by an earlier target is
// not offered to later ones.
var rules = []rule{
	{TargetClient, []string{"name", "nome", "client", "cliente"}},
	{TargetContact, []string{"contact", "contatto", "phone", "telefono", "whatsapp", "cellulare"}},
	{TargetStart, []string{"start", "inizio", "attivazione"}},
	{TargetEnd, []string{"end", "fine", "scadenza"}},
	{TargetPlan, []string{"plan", "duration", "durata", "mesi"}},
	{TargetPrice, []string{"price", "prezzo", "amount", "importo"}},
	{TargetDevice, []string{"device", "dispositivo"}},
	{TargetMAC, []string{"mac"}},
	{TargetM3U, []string{"m3u", "link", "url"}},
	{TargetLines, []string{"line", "linee", "lines"}},
}

// Targets lists every target in evaluation order.
func Targets() []Target {
	out := make([]Target, len(rules))
	for i, r := range rules {
		out[i] = r.target
	}
	return out
}

func knownTarget(t Target) bool {
	return slices.Contains(Targets(), t)
}

// Mapping assigns a source header to each mapped target.
type Mapping map[Target]string

// InferMapping guesses a mapping from the header row by case-insensitive
// keyword matching. The first matching header wins for each target.
func InferMapping(headers []string) Mapping {
	m := Mapping{}
	taken := make([]bool, len(headers))
	for _, r := range rules {
		for i, h := range headers {
			if taken[i] {
				continue
			}
			lower := strings.ToLower(strings.TrimSpace(h))
			if lower == "" {
				continue
			}
			if slices.ContainsFunc(r.keywords, func(k string) bool { return strings.Contains(lower, k) }) {
				m[r.target] = h
				taken[i] = true
				break
			}
		}
	}
	return m
}

// Merge returns m with override applied. An empty header in override unmaps
// that target.
func (m Mapping) Merge(override Mapping) Mapping {
	out := make(Mapping, len(m)+len(override))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range override {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Validate checks that every target is known and every header exists.
func (m Mapping) Validate(headers []string) error {
	for t, h := range m {
		if !knownTarget(t) {
			return errs.Validation("mapping", string(t), "unknown target")
		}
		if !slices.Contains(headers, h) {
			return errs.Validation("mapping."+string(t), h, "no such column")
		}
	}
	return nil
}

// columns resolves the mapping to column indexes; unmapped targets are -1.
func (m Mapping) columns(headers []string) map[Target]int {
	idx := make(map[Target]int, len(rules))
	for _, t := range Targets() {
		idx[t] = -1
		if h, ok := m[t]; ok {
			idx[t] = slices.Index(headers, h)
		}
	}
	return idx
}
