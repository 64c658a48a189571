package resolve

import (
	"fmt"

	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/schema"
	"github.com/schemalens/schemalens/internal/source"
)

// claimKey identifies an inverse claim: some association names targetIdx's
// field as its back reference.
type claimKey struct {
	targetIdx int
	field     string
}

type claimRef struct {
	recIdx   int
	assocIdx int
}

// Reconcile turns every record's association observations into final
// relationships, resolving bidirectional pairs, ownership and join metadata.
// It needs the complete record set: pairing is impossible before the per-file
// fan-in barrier. Records are processed in entity-declaration order, which is
// what makes the tie-breaks deterministic.
func Reconcile(records []*Record, diags *diag.Collector) {
	byClass := make(map[string]int, len(records))
	bySimple := make(map[string][]int)
	for i, rec := range records {
		if _, ok := byClass[rec.Entity.Class]; !ok {
			byClass[rec.Entity.Class] = i
		}
		simple := source.SimpleName(rec.Entity.Class)
		bySimple[simple] = append(bySimple[simple], i)
	}

	// Anchor every association to a resolved record where possible. A full
	// name match wins; otherwise an unambiguous simple-name match rescues
	// associations whose package guess missed.
	targets := make([][]int, len(records))
	for i, rec := range records {
		targets[i] = make([]int, len(rec.Associations))
		for j, a := range rec.Associations {
			targets[i][j] = -1
			if idx, ok := byClass[a.Target]; ok {
				targets[i][j] = idx
				continue
			}
			if matches := bySimple[source.SimpleName(a.Target)]; len(matches) == 1 {
				targets[i][j] = matches[0]
			}
		}
	}

	claims := make(map[claimKey][]claimRef)
	for i, rec := range records {
		for j, a := range rec.Associations {
			if a.MappedBy == "" || targets[i][j] < 0 {
				continue
			}
			key := claimKey{targetIdx: targets[i][j], field: a.MappedBy}
			claims[key] = append(claims[key], claimRef{recIdx: i, assocIdx: j})
		}
	}

	for i, rec := range records {
		for j, a := range rec.Associations {
			t := targets[i][j]
			owning, inverse := resolveOwnership(records, targets, claims, diags, i, j, t)

			targetClass := a.Target
			targetSimple := a.TargetSimple
			if targetSimple == "" {
				targetSimple = source.SimpleName(a.Target)
			}
			targetTable := schema.ToSnakeCase(targetSimple)
			if t >= 0 {
				targetClass = records[t].Entity.Class
				targetSimple = source.SimpleName(targetClass)
				targetTable = records[t].Entity.Table
			}

			fetch := schema.Fetch(a.Fetch)
			if fetch != schema.FetchEager && fetch != schema.FetchLazy {
				fetch = schema.DefaultFetch(a.Kind)
			}

			var joinColumn string
			var joinTable *schema.JoinTable
			if owning {
				switch {
				case a.Kind == schema.ManyToMany:
					jt := schema.JoinTable{}
					if a.JoinTable != nil {
						jt = *a.JoinTable
					}
					if jt.Name == "" {
						jt.Name = rec.Entity.Table + "_" + targetTable
					}
					if jt.JoinColumn == "" {
						jt.JoinColumn = schema.ToSnakeCase(source.SimpleName(rec.Entity.Class)) + "_id"
					}
					if jt.InverseJoinColumn == "" {
						jt.InverseJoinColumn = schema.ToSnakeCase(targetSimple) + "_id"
					}
					joinTable = &jt
				case !a.Kind.ToMany():
					joinColumn = a.JoinColumn
					if joinColumn == "" {
						joinColumn = schema.ToSnakeCase(a.Field) + "_id"
					}
				}
			}

			rel, err := schema.NewRelationship(schema.RelationshipSpec{
				Field:        a.Field,
				Kind:         a.Kind,
				Target:       targetClass,
				InverseField: inverse,
				Fetch:        fetch,
				Cascade:      a.Cascade,
				Owning:       owning,
				JoinColumn:   joinColumn,
				JoinTable:    joinTable,
				Inherited:    a.Inherited,
			})
			if err != nil {
				diags.Add(diag.New(stageRelationships, diag.CodeInvalidAssociation, diag.Warning, err.Error()).
					WithClass(rec.Entity.Class).WithField(a.Field))
				continue
			}
			rec.Entity.Relationships = append(rec.Entity.Relationships, rel)
		}
	}
}

// resolveOwnership decides the owning flag and inverse field for one
// association. The convention: the side without an inverse-of indicator owns
// the join. Modeling errors (both sides claiming the join, or both sides
// deferring it) resolve to the side processed first in entity-declaration
// order, recorded as a diagnostic.
func resolveOwnership(records []*Record, targets [][]int, claims map[claimKey][]claimRef, diags *diag.Collector, i, j, t int) (bool, string) {
	rec := records[i]
	a := rec.Associations[j]

	if a.MappedBy != "" {
		inverse := a.MappedBy
		if t < 0 {
			// Target never resolved to an entity; the assembler drops this
			// edge during referential repair, no point second-guessing here.
			return false, inverse
		}
		counterpart, cIdx := findAssociation(records[t], a.MappedBy)
		if counterpart == nil {
			diags.Add(diag.New(stageRelationships, diag.CodeUnresolvedInverse, diag.Warning,
				fmt.Sprintf("inverse field %s not found on %s", a.MappedBy, records[t].Entity.Class)).
				WithClass(rec.Entity.Class).WithField(a.Field))
			return false, inverse
		}
		if counterpart.MappedBy != "" {
			// Both sides defer ownership.
			if declaredEarlier(i, j, t, cIdx) {
				diags.Add(diag.New(stageRelationships, diag.CodeNoOwnershipClaim, diag.Warning,
					fmt.Sprintf("both %s.%s and %s.%s declare inverse markers; ownership assigned by declaration order",
						rec.Entity.Class, a.Field, records[t].Entity.Class, counterpart.Field)).
					WithClass(rec.Entity.Class).WithField(a.Field))
				return true, inverse
			}
			return false, inverse
		}
		if a.JoinDeclared {
			// This side defers ownership and declares the join at once.
			diags.Add(diag.New(stageRelationships, diag.CodeDoubleOwnership, diag.Warning,
				fmt.Sprintf("%s.%s declares both an inverse marker and join placement; ownership assigned by declaration order",
					rec.Entity.Class, a.Field)).
				WithClass(rec.Entity.Class).WithField(a.Field))
			return declaredEarlier(i, j, t, cIdx), inverse
		}
		return false, inverse
	}

	// No inverse marker: this side owns unless a paired counterpart that also
	// declared join placement wins the declaration-order tie-break.
	for _, cl := range claims[claimKey{targetIdx: i, field: a.Field}] {
		if cl.recIdx != t {
			continue
		}
		counterpart := records[cl.recIdx].Associations[cl.assocIdx]
		if counterpart.JoinDeclared && declaredEarlier(cl.recIdx, cl.assocIdx, i, j) {
			return false, counterpart.Field
		}
		return true, counterpart.Field
	}
	return true, ""
}

// findAssociation returns the first association observation with the given
// field name, or nil.
func findAssociation(rec *Record, field string) (*Association, int) {
	for i := range rec.Associations {
		if rec.Associations[i].Field == field {
			return &rec.Associations[i], i
		}
	}
	return nil, -1
}

// declaredEarlier reports whether observation (i1, j1) precedes (i2, j2) in
// entity-declaration order, fields breaking ties within one entity.
func declaredEarlier(i1, j1, i2, j2 int) bool {
	if i1 != i2 {
		return i1 < i2
	}
	return j1 < j2
}
