package scenario

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"xpo/css"
	"xpo/geom"
	"xpo/host"
)

// Scenario is a parsed scenario document: UI tree, its styles and script of
// host events and expectations.
type Scenario struct {
	Name   string
	Source string
	Window geom.Size

	PageShow     bool
	RootID       string
	CheckRatio   *bool
	Threshold    *float64
	Renotify     *bool
	PageDebounce *time.Duration
	CustomScroll []string

	Root  *Node
	Steps []Step

	sheet  *css.Stylesheet
	parser *css.Parser
	nodes  map[string]*Node
	lastID host.NodeID
}

// Node returns tree node by its key.
func (sc *Scenario) Node(key string) (*Node, bool) {
	n, ok := sc.nodes[key]
	return n, ok
}

// Nodes returns number of nodes known to scenario.
func (sc *Scenario) Nodes() int {
	return len(sc.nodes)
}

// LoadFile reads scenario from file.
func LoadFile(path string, log *zap.Logger) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read scenario: %w", err)
	}
	return Load(bytes.NewReader(data), path, log)
}

// Load parses scenario document. Source is used for naming and reporting.
func Load(r io.Reader, source string, log *zap.Logger) (*Scenario, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scenario")

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to parse scenario %s: %w", source, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "scenario" {
		return nil, fmt.Errorf("%s: root element <scenario> not found", source)
	}

	sc := &Scenario{
		Source: source,
		parser: css.NewParser(log),
		nodes:  make(map[string]*Node),
	}
	if err := sc.header(root); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	var tree, script *etree.Element
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "style":
			sc.sheet = sc.parser.Parse([]byte(child.Text()), source)
			for _, w := range sc.sheet.Warnings {
				log.Debug("Style", zap.String("source", source), zap.String("warning", w))
			}
		case "tree":
			tree = child
		case "script":
			script = child
		default:
			log.Warn("Unexpected element in scenario, skipping", zap.String("source", source), zap.String("tag", child.Tag))
		}
	}
	if tree == nil {
		return nil, fmt.Errorf("%s: <tree> is missing", source)
	}
	if err := sc.loadTree(tree); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if script != nil {
		if err := sc.loadScript(script); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	}
	log.Debug("Scenario loaded", zap.String("name", sc.Name), zap.Int("nodes", len(sc.nodes)), zap.Int("steps", len(sc.Steps)))
	return sc, nil
}

func (sc *Scenario) header(el *etree.Element) error {
	a := attrs{el: el}

	sc.Name = a.str("name")
	if len(sc.Name) == 0 {
		sc.Name = strings.TrimSuffix(filepath.Base(sc.Source), filepath.Ext(sc.Source))
	}
	if w := a.str("window"); len(w) > 0 {
		size, err := parseSize(w)
		if err != nil {
			a.err = multierr.Append(a.err, err)
		}
		sc.Window = size
	}
	sc.PageShow = a.boolean("page-show", true)
	sc.RootID = a.str("root-id")
	sc.CheckRatio = a.optBool("check-ratio")
	sc.Threshold = a.optFloat("threshold")
	sc.Renotify = a.optBool("renotify")
	if a.has("page-debounce") {
		d := a.duration("page-debounce")
		sc.PageDebounce = &d
	}
	sc.CustomScroll = a.list("custom-scroll")
	return a.err
}

func (sc *Scenario) loadTree(tree *etree.Element) error {
	kids := tree.ChildElements()
	if len(kids) != 1 {
		return fmt.Errorf("<tree> must have exactly one root element, got %d", len(kids))
	}

	type item struct {
		el     *etree.Element
		parent *Node
	}
	stack := []item{{kids[0], nil}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := sc.newNode(it.el.Tag, attrs{el: it.el}, it.parent)
		if err != nil {
			return err
		}
		if it.parent == nil {
			n.root = true
			sc.Root = n
			if n.rect == nil && sc.Window.Width > 0 {
				r := geom.FromSize(sc.Window)
				n.rect = &r
			}
		}
		children := it.el.ChildElements()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, item{children[i], n})
		}
	}
	return nil
}

// newNode creates node from attributes and links it to parent. Nodes get
// identifiers in creation order.
func (sc *Scenario) newNode(tag string, a attrs, parent *Node) (*Node, error) {
	sc.lastID++
	n := &Node{
		id:      sc.lastID,
		tag:     strings.ToLower(tag),
		eid:     a.str("id"),
		classes: strings.Fields(a.str("class")),
		virtual: !a.boolean("native", true),
		rect:    a.rect("rect"),
	}
	n.key = a.str("key")
	if len(n.key) == 0 {
		n.key = n.eid
	}
	if len(n.key) == 0 {
		n.key = "n" + n.id.String()
	}
	if _, dup := sc.nodes[n.key]; dup {
		return nil, fmt.Errorf("duplicate node key %q", n.key)
	}
	if a.has("bind") {
		n.bind = &bindSpec{data: a.str("bind"), enable: a.optBool("enable")}
	}
	if a.err != nil {
		return nil, fmt.Errorf("node %q: %w", n.key, a.err)
	}

	if parent != nil {
		parent.appendChild(n)
	}
	n.inline = sc.parser.ParseInline(a.str("style"))
	n.style = sc.sheet.Compute(cssElement(n), n.inline)
	sc.nodes[n.key] = n
	return n, nil
}

func cssElement(n *Node) *css.Element {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	var el *css.Element
	for i := len(chain) - 1; i >= 0; i-- {
		el = &css.Element{Tag: chain[i].tag, ID: chain[i].eid, Classes: chain[i].classes, Parent: el}
	}
	return el
}

func (sc *Scenario) loadScript(script *etree.Element) error {
	known := make(map[string]bool, len(sc.nodes))
	for k := range sc.nodes {
		known[k] = true
	}

	var errs error
	for i, el := range script.ChildElements() {
		st, err := parseStep(el, i+1)
		if err == nil {
			err = checkRefs(st, known)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("step #%d <%s>: %w", i+1, el.Tag, err))
			continue
		}
		sc.Steps = append(sc.Steps, st)
	}
	return errs
}

// checkRefs verifies that step refers to nodes existing at that point of
// script.
func checkRefs(st Step, known map[string]bool) error {
	switch st.Op {
	case OpAppend:
		if !known[st.Parent] {
			return fmt.Errorf("unknown parent node %q", st.Parent)
		}
		if known[st.Node] {
			return fmt.Errorf("duplicate node key %q", st.Node)
		}
		known[st.Node] = true
		return nil
	case OpForce, OpStart, OpPageShow, OpCustomScroll, OpIdle, OpAdvance, OpCollect, OpExpectNotify, OpDump:
		if len(st.Node) == 0 {
			return nil
		}
	}
	if !known[st.Node] {
		return fmt.Errorf("unknown node %q", st.Node)
	}
	return nil
}

func parseStep(el *etree.Element, index int) (Step, error) {
	op, err := ParseOp(el.Tag)
	if err != nil {
		return Step{}, err
	}
	a := attrs{el: el}
	st := Step{Op: op, Index: index, Node: a.str("node")}

	switch op {
	case OpLayout:
		a.required("node")
		st.X, st.Y, st.W, st.H = a.float("x"), a.float("y"), a.float("w"), a.float("h")
	case OpAttach, OpDetach, OpUnbind, OpRemove:
		a.required("node")
	case OpScroll:
		a.required("node")
		st.X, st.Y = a.float("x"), a.float("y")
	case OpPage:
		a.required("node")
		st.Slide = a.integer("slide", -1)
	case OpStart:
		st.Flag = a.boolean("from-host", false)
	case OpPageShow:
		st.Flag = a.boolean("value", true)
	case OpBind, OpUpdate:
		a.required("node")
		if a.has("data") {
			d := a.str("data")
			st.Data = &d
		}
		st.Enable = a.optBool("enable")
	case OpInvalidate, OpTrigger:
		a.required("node")
		st.Deep = a.boolean("deep", false)
	case OpForce:
		st.Check = a.boolean("check-enable", false)
	case OpAppend:
		st.Parent = a.required("parent")
		st.Tag = strings.ToLower(a.required("tag"))
		st.Node = a.required("key")
		st.ID, st.Class, st.Style = a.str("id"), a.str("class"), a.str("style")
		st.Rect = a.rect("rect")
	case OpCustomScroll:
		st.Tags = a.list("tags")
	case OpIdle, OpCollect, OpDump:
	case OpAdvance:
		st.Duration = a.duration("by")
	case OpExpect:
		a.required("node")
		st.Status = a.str("status")
		st.Ratio = a.optFloat("ratio")
		st.Exposed = a.optBool("exposed")
		st.Query = a.optBool("query")
		for _, name := range a.list("listens") {
			k, err := host.ParseEventKind(name)
			if err != nil {
				a.fail("listens", err)
				continue
			}
			st.Listens = append(st.Listens, k)
		}
	case OpExpectNotify:
		st.Visible = a.list("visible")
		st.Hidden = a.list("invisible")
	case OpExpectEvent:
		a.required("node")
		st.Event = a.required("name")
		st.Count = a.integer("count", 1)
	}
	return st, a.err
}

// attrs reads typed attribute values accumulating conversion errors.
type attrs struct {
	el  *etree.Element
	err error
}

func (a *attrs) has(name string) bool {
	return a.el.SelectAttr(name) != nil
}

func (a *attrs) str(name string) string {
	return strings.TrimSpace(a.el.SelectAttrValue(name, ""))
}

func (a *attrs) fail(name string, err error) {
	a.err = multierr.Append(a.err, fmt.Errorf("attribute %q: %w", name, err))
}

func (a *attrs) required(name string) string {
	v := a.str(name)
	if len(v) == 0 {
		a.fail(name, errMissing)
	}
	return v
}

func (a *attrs) float(name string) float64 {
	v := a.str(name)
	if len(v) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		a.fail(name, err)
	}
	return f
}

func (a *attrs) optFloat(name string) *float64 {
	if !a.has(name) {
		return nil
	}
	f := a.float(name)
	return &f
}

func (a *attrs) integer(name string, dflt int) int {
	v := a.str(name)
	if len(v) == 0 {
		return dflt
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		a.fail(name, err)
		return dflt
	}
	return i
}

func (a *attrs) boolean(name string, dflt bool) bool {
	v := a.str(name)
	if len(v) == 0 {
		return dflt
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		a.fail(name, err)
		return dflt
	}
	return b
}

func (a *attrs) optBool(name string) *bool {
	if !a.has(name) {
		return nil
	}
	b := a.boolean(name, false)
	return &b
}

func (a *attrs) duration(name string) time.Duration {
	v := a.str(name)
	if len(v) == 0 {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		a.fail(name, err)
	}
	return d
}

// list splits comma separated value, empty entries are dropped.
func (a *attrs) list(name string) []string {
	var out []string
	for s := range strings.SplitSeq(a.str(name), ",") {
		if s = strings.TrimSpace(s); len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (a *attrs) rect(name string) *geom.Rect {
	v := a.str(name)
	if len(v) == 0 {
		return nil
	}
	var vals [4]float64
	parts := strings.Split(v, ",")
	if len(parts) != len(vals) {
		a.fail(name, fmt.Errorf("%q is not x,y,w,h", v))
		return nil
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			a.fail(name, err)
			return nil
		}
		vals[i] = f
	}
	return &geom.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
}

func parseSize(s string) (geom.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return geom.Size{}, fmt.Errorf("window %q is not WxH", s)
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return geom.Size{}, fmt.Errorf("window %q: %w", s, err)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return geom.Size{}, fmt.Errorf("window %q: %w", s, err)
	}
	return geom.Size{Width: width, Height: height}, nil
}
