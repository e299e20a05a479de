package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/sqlgen"
)

// ValidateReferences resolves every reference input of actions to the id of
// the record it names and stores it in st.References. An input matching no
// record is recorded in issues under its fieldset path; other inputs are
// still resolved. Inputs that already have an issue are skipped.
func (x *Executor) ValidateReferences(ctx context.Context, st *State, actions []definition.ActionDef,
	issues *alerr.ValidationErrors) error {

	if st.References == nil {
		st.References = map[string]int64{}
	}
	flagged := map[string]bool{}
	for _, issue := range issues.Issues() {
		flagged[issue.Key()] = true
	}

	for _, a := range actions {
		var cs definition.Changeset
		switch a := a.(type) {
		case *definition.CreateOneAction:
			cs = a.Changeset
		case *definition.UpdateOneAction:
			cs = a.Changeset
		default:
			continue
		}
		for _, op := range cs {
			s, ok := op.Setter.(*definition.FieldsetReferenceInputSetter)
			if !ok {
				continue
			}
			key := strings.Join(s.FieldsetAccess, ".")
			if flagged[key] {
				continue
			}
			if _, done := st.References[key]; done {
				continue
			}
			v, present := inputAt(st.Input, s.FieldsetAccess)
			if !present || v == nil {
				continue
			}
			id, found, err := x.lookupReference(ctx, st.DB, s, FormatFieldValue(v, s.Type))
			if err != nil {
				return err
			}
			if !found {
				flagged[key] = true
				issues.AddIssue(alerr.FieldIssue{
					Path:    s.FieldsetAccess,
					Code:    IssueReferenceNotFound,
					Message: fmt.Sprintf("no %s matches %v", s.ThroughRefKey, v),
					Params:  map[string]any{"through": s.ThroughRefKey},
				})
				continue
			}
			st.References[key] = id
		}
	}
	return nil
}

// lookupReference finds the id of the record whose through field equals value.
func (x *Executor) lookupReference(ctx context.Context, db DB, s *definition.FieldsetReferenceInputSetter,
	value any) (int64, bool, error) {

	ref, err := x.def.GetRef(s.ThroughRefKey)
	if err != nil || ref.Kind != definition.RefField {
		return 0, false, alerr.Newf(alerr.EInternalError, "reference input goes through %s, which is not a field", s.ThroughRefKey)
	}
	stmt := x.b.ReferenceLookupSQL(ref.Model, ref.Field.DBName)
	bound, args, err := sqlgen.Bind(x.b.Dialect(), stmt, sqlgen.MapLookup(map[string]any{sqlgen.ValueParam: value}))
	if err != nil {
		return 0, false, err
	}
	rows, err := db.QueryContext(ctx, bound, args...)
	if err != nil {
		return 0, false, alerr.WrapSQL(err, "look up reference", bound)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, false, alerr.WrapSQL(err, "scan reference", bound)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, false, alerr.WrapSQL(err, "read reference", bound)
	}
	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return ids[0], true, nil
	}
	return 0, false, alerr.Newf(alerr.EInternalError, "%s = %v matches more than one record", s.ThroughRefKey, value).
		WithSQL(bound)
}
