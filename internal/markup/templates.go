package markup

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/extractors"
)

// templatesFor returns the template elements enabled under a root element.
// Typed model elements are recognised under any root.
func templatesFor(root string) map[string]bool {
	t := map[string]bool{"model": true}
	switch root {
	case "smses":
		t["sms"] = true
		t["mms"] = true
	case "calls":
		t["call"] = true
	}
	return t
}

// UFED model types by family.
var modelFamilies = map[string]domain.RecordFamily{
	"call":           domain.FamilyCall,
	"sms":            domain.FamilyChat,
	"mms":            domain.FamilyChat,
	"instantmessage": domain.FamilyChat,
	"chatmessage":    domain.FamilyChat,
	"contact":        domain.FamilyContact,
}

// Model types folded into their parent model.
var (
	partyModels      = map[string]bool{"party": true}
	identifierModels = map[string]bool{"phonenumber": true, "emailaddress": true, "userid": true}
)

// finish converts a completed template element into records.
func (p *parser) finish(pd *pending) {
	switch pd.kind {
	case "sms":
		p.mapValues(domain.FamilyChat, map[string]any{
			domain.FieldParticipant: pd.attrs["address"],
			domain.FieldBody:        pd.attrs["body"],
			domain.FieldTimestamp:   pd.attrs["date"],
			domain.FieldDirection:   pd.attrs["type"],
		}, "sms")
	case "mms":
		p.mapValues(domain.FamilyChat, map[string]any{
			domain.FieldParticipant: pd.attrs["address"],
			domain.FieldBody:        strings.Join(pd.parts, "\n"),
			domain.FieldTimestamp:   pd.attrs["date"],
			domain.FieldDirection:   pd.attrs["msg_box"],
		}, "mms")
	case "call":
		p.mapValues(domain.FamilyCall, map[string]any{
			domain.FieldParticipant: pd.attrs["number"],
			domain.FieldDuration:    pd.attrs["duration"],
			domain.FieldTimestamp:   pd.attrs["date"],
			domain.FieldDirection:   pd.attrs["type"],
		}, "call")
	case "model":
		p.finishModel(pd)
	}
}

// finishModel handles a UFED-style <model type="..."> element.
func (p *parser) finishModel(pd *pending) {
	typ := strings.ToLower(pd.attrs["type"])

	var parent *pending
	if len(p.pend) > 0 {
		parent = p.pend[len(p.pend)-1]
	}
	switch {
	case partyModels[typ] && parent != nil:
		for _, k := range pd.order {
			parent.set(k, pd.fields[k])
		}
		return
	case identifierModels[typ] && parent != nil:
		if v := strings.TrimSpace(pd.fields["Value"]); v != "" {
			parent.ids = append(parent.ids, v)
		}
		return
	}

	family, ok := modelFamilies[typ]
	if !ok || (len(pd.fields) == 0 && len(pd.ids) == 0) {
		return
	}

	f := &frame{name: "model:" + typ}
	for _, k := range pd.order {
		f.leaf(k, pd.fields[k])
	}

	vals := make(map[string]any)
	if d := p.decideFamily(f, family); d != nil {
		for canonical, key := range d.profile.ColumnMapping {
			if v, ok := f.value(key); ok {
				vals[canonical] = v
			}
		}
	}

	if family != domain.FamilyContact {
		p.mapValues(family, vals, typ)
		return
	}

	p.models++
	group := typ + "#" + strconv.Itoa(p.models)
	vals[domain.FieldGroup] = group
	added := p.contacts.Add(extractors.MapValues(vals))
	for _, id := range pd.ids {
		if p.contacts.Add(extractors.MapValues(map[string]any{domain.FieldPhone: id, domain.FieldGroup: group})) {
			added = true
		}
	}
	if !added {
		p.result.SkippedRows++
	}
}

// decideFamily maps model field names for a known family, cached per model type.
func (p *parser) decideFamily(f *frame, family domain.RecordFamily) *decision {
	if d, ok := p.decisions[f.name]; ok {
		return d
	}
	var d *decision
	table := pseudoTable(f.name, f.keys, f.value)
	if c, ok := p.ex.detector.BestForFamily(table, family); ok {
		d = &decision{profile: c.Profile()}
	}
	p.decisions[f.name] = d
	return d
}
