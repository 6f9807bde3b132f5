package filter

import (
	"context"

	"github.com/arthur-debert/casedb/casedb"
	"github.com/arthur-debert/casedb/internal/xpath"
	"github.com/arthur-debert/casedb/types"
)

const dateLayout = "2006-01-02"

// indexedAttributes maps case element attributes to store lookup fields
var indexedAttributes = map[string]string{
	"case_id":   casedb.FieldCaseID,
	"case_type": casedb.FieldCaseType,
	"status":    casedb.FieldCaseStatus,
}

// caseStorage exposes a store to the evaluator. The context is the one of the
// request that owns the store.
type caseStorage struct {
	ctx   context.Context
	store *casedb.Store
}

func (s caseStorage) Read(ordinal int) (xpath.Node, error) {
	c, err := s.store.Read(s.ctx, ordinal)
	if err != nil {
		return nil, err
	}
	return renderCase(c), nil
}

func (s caseStorage) IDsForValue(field, value string) ([]int, error) {
	return s.store.IDsForValue(field, value)
}

func (s caseStorage) NumRecords() int {
	return s.store.NumRecords()
}

func (s caseStorage) Iterate() xpath.Iterator {
	return s.store.Iterate()
}

// lookupFields is indexedAttributes restricted to the fields the store can answer
func lookupFields() map[string]string {
	fields := make(map[string]string, len(indexedAttributes))
	for attr, field := range indexedAttributes {
		if casedb.IsIndexedField(field) {
			fields[attr] = field
		}
	}
	return fields
}

func caseInstance(ctx context.Context, store *casedb.Store) xpath.Instance {
	return xpath.StorageInstance("casedb", "case", caseStorage{ctx: ctx, store: store}, lookupFields())
}

// renderCase builds the element the evaluator sees for a case:
//
//	<case case_id case_type owner_id status>
//	  <case_name/> <date_opened/> <property/>... <index><rel case_type>target</rel></index>
//	</case>
func renderCase(c *types.Case) *xpath.Element {
	el := xpath.NewElement("case", "").
		SetAttr("case_id", c.ID).
		SetAttr("case_type", c.TypeID).
		SetAttr("owner_id", c.UserID).
		SetAttr("status", c.Status())

	el.Append(xpath.NewElement("case_name", c.Name))

	opened := ""
	if c.DateOpened != nil {
		opened = c.DateOpened.Format(dateLayout)
	}
	el.Append(xpath.NewElement("date_opened", opened))

	for _, name := range c.PropertyNames() {
		el.Append(xpath.NewElement(name, c.Properties[name]))
	}

	index := xpath.NewElement("index", "")
	for _, name := range c.IndexNames() {
		idx := c.Indices[name]
		index.Append(xpath.NewElement(name, idx.CaseID).SetAttr("case_type", idx.CaseType))
	}
	el.Append(index)

	return el
}
