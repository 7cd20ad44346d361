package sqlgraph

import (
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/graph"
	"github.com/rvohealth/dream-sub006/schema"
)

// Hydrator maps the rows of a hydrating query back onto records.
type Hydrator struct {
	plan *graph.Plan
	// nodes[0] is the root, nodes[i+1] is step i.
	nodes []node
}

type node struct {
	entity *schema.EntityType
	// selected maps a column to the name it is selected as.
	selected map[string]string
	pk       string
}

// HydratingQuery turns sel, whose FROM table is the plan root under the
// root alias, into a single query returning the root rows together with
// every step row. Steps are left-joined, so root rows without associated
// rows are kept. The existing ORDER BY of sel stays first.
func (c *Compiler) HydratingQuery(sel *sql.Selector, plan *graph.Plan) (*Hydrator, error) {
	h := &Hydrator{plan: plan, nodes: make([]node, 0, len(plan.Steps)+1)}
	sel.Select()
	h.nodes = append(h.nodes, selectNode(sel, plan.Root, plan.RootAlias))
	sel.OrderBy(sql.Asc(plan.RootAlias + "." + plan.Root.PrimaryKey.Column()))
	for _, s := range plan.Steps {
		if s.Polymorphic() {
			return nil, ambiguous(s)
		}
		p, err := c.on(plan, s, s.Entity)
		if err != nil {
			return nil, err
		}
		sel.LeftJoin(sql.Table(s.Entity.Table).As(s.Alias)).OnP(p)
		h.nodes = append(h.nodes, selectNode(sel, s.Entity, s.Alias))
		if !s.Hidden {
			sel.OrderBy(orderTerms(s.Alias, s.Entity, s.Order)...)
		}
	}
	return h, nil
}

func selectNode(sel *sql.Selector, e *schema.EntityType, alias string) node {
	n := node{entity: e, selected: make(map[string]string), pk: e.PrimaryKey.Column()}
	cols := e.TableColumns()
	if e.IsVariant() {
		cols = e.Columns()
	}
	for _, col := range cols {
		as := alias + "__" + col.Column()
		sel.AppendSelectAs(alias+"."+col.Column(), as)
		n.selected[col.Column()] = as
	}
	return n
}

// Scan reads rows and returns the distinct root records in row order with
// every visible step grafted. Records without associated rows get an
// empty list or a nil record.
func (h *Hydrator) Scan(rows sql.ColumnScanner) ([]*schema.Record, error) {
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, err
	}
	var (
		roots    []*schema.Record
		identity = make([]map[any]*schema.Record, len(h.nodes))
		order    = make([][]*schema.Record, len(h.nodes))
		grafts   = make(map[graftKey][]*schema.Record)
		seen     = make(map[graftKey]map[any]bool)
	)
	for i := range identity {
		identity[i] = make(map[any]*schema.Record)
	}
	for _, m := range maps {
		recs := make([]*schema.Record, len(h.nodes))
		for i, n := range h.nodes {
			if i > 0 && h.plan.Steps[i-1].Hidden {
				continue
			}
			id := m[n.selected[n.pk]]
			if id == nil {
				continue
			}
			k := schema.Key(id)
			if rec, ok := identity[i][k]; ok {
				recs[i] = rec
				continue
			}
			row := make(map[string]any, len(n.selected))
			for col, as := range n.selected {
				row[col] = m[as]
			}
			rec, err := n.entity.Hydrate(row)
			if err != nil {
				return nil, err
			}
			identity[i][k] = rec
			order[i] = append(order[i], rec)
			recs[i] = rec
		}
		if recs[0] == nil {
			continue
		}
		for _, s := range h.plan.Visible() {
			child, parent := recs[s.Index+1], recs[s.GraftTo+1]
			if child == nil || parent == nil {
				continue
			}
			gk := graftKey{parent: parent, step: s.Index}
			if seen[gk] == nil {
				seen[gk] = make(map[any]bool)
			}
			if k := schema.Key(child.ID()); !seen[gk][k] {
				seen[gk][k] = true
				grafts[gk] = append(grafts[gk], child)
			}
		}
	}
	roots = order[0]
	for _, s := range h.plan.Visible() {
		for _, parent := range order[s.GraftTo+1] {
			graft(parent, s, grafts[graftKey{parent: parent, step: s.Index}])
		}
	}
	return roots, nil
}

type graftKey struct {
	parent *schema.Record
	step   int
}

// graft sorts the rows of step s reached from parent and stores them under
// the step name.
func graft(parent *schema.Record, s *graph.Step, children []*schema.Record) {
	SortRecords(children, s.Order)
	if s.Many {
		if children == nil {
			children = []*schema.Record{}
		}
		parent.SetLoaded(s.Name, children)
		return
	}
	var one *schema.Record
	if len(children) > 0 {
		one = children[0]
	}
	parent.SetLoaded(s.Name, one)
}
