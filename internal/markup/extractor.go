package markup

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/extractors"
	"github.com/custodia-labs/ingestor/internal/logger"
	"github.com/custodia-labs/ingestor/internal/schema"
)

// Ensure Extractor implements the interface.
var _ driven.MarkupExtractor = (*Extractor)(nil)

// ctxCheckInterval is how many tokens are read between cancellation checks.
const ctxCheckInterval = 64

// maxTextBytes caps the character data kept per element.
const maxTextBytes = 1 << 20

// minGenericFields is the number of mapped keys a generic element needs.
const minGenericFields = 2

// Extractor parses XML reports into canonical records.
// It is safe for concurrent use; per-document state lives in a parser.
type Extractor struct {
	decoder  *extractors.Decoder
	detector *schema.Detector
	chat     *extractors.ChatExtractor
	call     *extractors.CallExtractor
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDecoder sets the value decoder.
func WithDecoder(d *extractors.Decoder) Option {
	return func(e *Extractor) {
		if d != nil {
			e.decoder = d
		}
	}
}

// WithDetector sets the detector used by the generic pass.
func WithDetector(d *schema.Detector) Option {
	return func(e *Extractor) {
		if d != nil {
			e.detector = d
		}
	}
}

// New creates a markup extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		decoder:  extractors.NewDecoder(),
		detector: schema.NewDetector(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.chat = extractors.NewChatExtractor(e.decoder)
	e.call = extractors.NewCallExtractor(e.decoder)
	return e
}

// Extract parses the stream. A syntax error is reported as
// domain.ErrUnparseableMarkup together with the records read before it.
// A stream without any element wraps domain.ErrUnsupportedType.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, entryPath string) (*driven.ExtractResult, error) {
	p := &parser{
		ex:        e,
		entryPath: entryPath,
		result:    &driven.ExtractResult{},
		decisions: make(map[string]*decision),
		contacts:  extractors.NewContactFolder(entryPath, "contact"),
	}

	doc := newDocument(r)
	dec := xml.NewDecoder(doc.r)
	dec.CharsetReader = doc.charsetReader
	switch strings.ToLower(path.Ext(entryPath)) {
	case ".html", ".htm", ".xhtml":
		dec.Strict = false
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}

	err := p.run(ctx, dec)
	p.result.Records = append(p.result.Records, p.contacts.Records()...)
	if err != nil {
		return p.result, err
	}
	if !p.sawRoot {
		return p.result, fmt.Errorf("%w: %s: no markup elements", domain.ErrUnsupportedType, entryPath)
	}
	return p.result, nil
}

// frame is an open element.
type frame struct {
	name   string
	attrs  map[string]string
	keys   []string
	leaves map[string]string
	text   strings.Builder
	nested bool
}

func (f *frame) add(key, value string) {
	if f.attrs == nil {
		f.attrs = make(map[string]string)
	}
	if _, ok := f.attrs[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.attrs[key] = value
}

func (f *frame) leaf(key, value string) {
	if f.leaves == nil {
		f.leaves = make(map[string]string)
	}
	if _, ok := f.leaves[key]; !ok {
		f.keys = append(f.keys, key)
		f.leaves[key] = value
	}
}

// value returns an attribute, else a leaf child.
func (f *frame) value(key string) (string, bool) {
	if v, ok := f.attrs[key]; ok {
		return v, true
	}
	v, ok := f.leaves[key]
	return v, ok
}

// pending is a template record collecting data from its descendants.
type pending struct {
	kind   string
	depth  int
	attrs  map[string]string
	fields map[string]string
	order  []string
	parts  []string
	ids    []string
}

func (p *pending) set(name, value string) {
	if p.fields == nil {
		p.fields = make(map[string]string)
	}
	if _, ok := p.fields[name]; ok {
		return
	}
	p.fields[name] = value
	p.order = append(p.order, name)
}

// parser holds per-document state.
type parser struct {
	ex        *Extractor
	entryPath string
	result    *driven.ExtractResult
	decisions map[string]*decision
	contacts  *extractors.ContactFolder
	templates map[string]bool
	stack     []*frame
	pend      []*pending
	sawRoot   bool
	models    int
}

func (p *parser) run(ctx context.Context, dec *xml.Decoder) error {
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if len(p.stack) > 0 {
				return fmt.Errorf("%w: %s: unexpected end of document", domain.ErrUnparseableMarkup, p.entryPath)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrUnparseableMarkup, p.entryPath, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			p.start(t)
		case xml.CharData:
			if len(p.stack) > 0 {
				top := p.stack[len(p.stack)-1]
				if top.text.Len() < maxTextBytes {
					top.text.Write(t)
				}
			}
		case xml.EndElement:
			p.end()
		}
	}
}

func (p *parser) start(t xml.StartElement) {
	name := strings.ToLower(t.Name.Local)
	if !p.sawRoot {
		p.sawRoot = true
		p.templates = templatesFor(name)
	}
	if len(p.stack) > 0 {
		p.stack[len(p.stack)-1].nested = true
	}

	f := &frame{name: name}
	for _, a := range t.Attr {
		f.add(strings.ToLower(a.Name.Local), a.Value)
	}
	p.stack = append(p.stack, f)

	if p.templates[name] && (name != "model" || f.attrs["type"] != "") {
		p.pend = append(p.pend, &pending{kind: name, depth: len(p.stack), attrs: f.attrs})
		return
	}

	// MMS text parts.
	if name == "part" && len(p.pend) > 0 {
		top := p.pend[len(p.pend)-1]
		if top.kind == "mms" && strings.HasPrefix(strings.ToLower(f.attrs["ct"]), "text/plain") {
			if txt := f.attrs["text"]; txt != "" && txt != "null" {
				top.parts = append(top.parts, txt)
			}
		}
	}
}

func (p *parser) end() {
	if len(p.stack) == 0 {
		return
	}
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	depth := len(p.stack) + 1

	var parent *frame
	if len(p.stack) > 0 {
		parent = p.stack[len(p.stack)-1]
	}
	if !f.nested && parent != nil {
		parent.leaf(f.name, strings.TrimSpace(f.text.String()))
	}

	// UFED field: <field name="X"><value>v</value></field>
	if f.name == "field" && len(p.pend) > 0 {
		if key := f.attrs["name"]; key != "" {
			if v, ok := f.leaves["value"]; ok {
				p.pend[len(p.pend)-1].set(key, v)
			}
		}
	}

	if len(p.pend) > 0 && p.pend[len(p.pend)-1].depth == depth {
		pd := p.pend[len(p.pend)-1]
		p.pend = p.pend[:len(p.pend)-1]
		p.finish(pd)
		return
	}

	if len(p.pend) == 0 && (len(f.attrs) > 0 || len(f.leaves) > 0) {
		p.generic(f)
	}
}

// emit records the outcome of one mapped row.
func (p *parser) emit(rec domain.Record, ok bool) {
	if !ok {
		p.result.SkippedRows++
		return
	}
	p.result.Records = append(p.result.Records, rec)
}

// generic maps a pseudo-row through the cached detector decision for its element.
func (p *parser) generic(f *frame) {
	d := p.decide(f.name, f)
	if d == nil {
		return
	}

	vals := make(map[string]any, len(d.profile.ColumnMapping))
	for canonical, key := range d.profile.ColumnMapping {
		if v, ok := f.value(key); ok {
			vals[canonical] = v
		}
	}
	p.mapValues(d.profile.Family, vals, f.name)
}

func (p *parser) mapValues(family domain.RecordFamily, vals map[string]any, source string) {
	switch family {
	case domain.FamilyChat:
		p.emit(p.ex.chat.Map(extractors.MapValues(vals), p.entryPath, source))
	case domain.FamilyCall:
		p.emit(p.ex.call.Map(extractors.MapValues(vals), p.entryPath, source))
	case domain.FamilyContact:
		p.models++
		vals[domain.FieldGroup] = source + "#" + strconv.Itoa(p.models)
		if !p.contacts.Add(extractors.MapValues(vals)) {
			p.result.SkippedRows++
		}
	}
}

// decision is the cached detector outcome for an element name.
type decision struct {
	profile domain.SchemaProfile
}

// decide scores an element shape once and caches the outcome per element
// name and key set.
func (p *parser) decide(name string, f *frame) *decision {
	keys := append([]string(nil), f.keys...)
	sort.Strings(keys)
	cacheKey := name + "|" + strings.Join(keys, ",")
	if d, ok := p.decisions[cacheKey]; ok {
		return d
	}

	table := pseudoTable(name, f.keys, f.value)
	var d *decision
	// A single matched key (a lone name attribute, say) is too weak to
	// turn every such element into a record.
	if profiles := p.ex.detector.DetectTables([]domain.TableInfo{table}); len(profiles) > 0 &&
		len(profiles[0].ColumnMapping) >= minGenericFields {
		d = &decision{profile: profiles[0]}
		logger.Debug("Markup element <%s> in %s maps to %s (score %.2f)",
			name, p.entryPath, d.profile.Family, d.profile.ConfidenceScore)
	}
	p.decisions[cacheKey] = d
	return d
}

// pseudoTable describes a set of keys as a one-row table, inferring a
// column type from each sample value.
func pseudoTable(name string, keys []string, value func(string) (string, bool)) domain.TableInfo {
	t := domain.TableInfo{Name: name, RowCount: 1}
	for _, k := range keys {
		v, _ := value(k)
		decl := "TEXT"
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			decl = "INTEGER"
		}
		t.Columns = append(t.Columns, domain.ColumnInfo{Name: k, DeclType: decl, Affinity: domain.AffinityOf(decl)})
	}
	return t
}
