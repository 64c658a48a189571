package resolve

import (
	"context"
	"testing"

	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/schema"
)

func testRecord(class, table string, assocs ...Association) *Record {
	return &Record{
		Entity:       schema.Entity{Class: class, Table: table},
		Associations: assocs,
	}
}

func relByField(t *testing.T, rec *Record, field string) schema.Relationship {
	t.Helper()
	for _, r := range rec.Entity.Relationships {
		if r.Field == field {
			return r
		}
	}
	t.Fatalf("no relationship for field %q on %s", field, rec.Entity.Class)
	return schema.Relationship{}
}

func TestReconcileBidirectionalPair(t *testing.T) {
	order := testRecord("com.shop.Order", "orders", Association{
		Field:    "items",
		Kind:     schema.OneToMany,
		Target:   "com.shop.Item",
		MappedBy: "order",
	})
	item := testRecord("com.shop.Item", "items", Association{
		Field:        "order",
		Kind:         schema.ManyToOne,
		Target:       "com.shop.Order",
		JoinDeclared: true,
		JoinColumn:   "order_fk",
	})
	diags := diag.NewCollector()

	Reconcile([]*Record{order, item}, diags)

	items := relByField(t, order, "items")
	if items.Owning {
		t.Error("items.Owning = true, want false")
	}
	if items.InverseField != "order" {
		t.Errorf("items.InverseField = %q, want order", items.InverseField)
	}
	if items.Fetch != schema.FetchLazy {
		t.Errorf("items.Fetch = %q, want lazy", items.Fetch)
	}
	if items.JoinColumn != "" || items.JoinTable != nil {
		t.Errorf("items carries join metadata (%q, %v), want none", items.JoinColumn, items.JoinTable)
	}

	rel := relByField(t, item, "order")
	if !rel.Owning {
		t.Error("order.Owning = false, want true")
	}
	if rel.InverseField != "items" {
		t.Errorf("order.InverseField = %q, want items", rel.InverseField)
	}
	if rel.JoinColumn != "order_fk" {
		t.Errorf("order.JoinColumn = %q, want order_fk", rel.JoinColumn)
	}
	if rel.Fetch != schema.FetchEager {
		t.Errorf("order.Fetch = %q, want eager", rel.Fetch)
	}

	if diags.Count() != 0 {
		t.Errorf("diagnostics = %v, want none", diags.All())
	}
}

func TestReconcileOwningDefaults(t *testing.T) {
	order := testRecord("com.shop.Order", "orders",
		Association{
			Field:  "customerAccount",
			Kind:   schema.ManyToOne,
			Target: "com.shop.Customer",
		},
		Association{
			Field:  "tags",
			Kind:   schema.ManyToMany,
			Target: "com.shop.Tag",
		},
		Association{
			Field:     "labels",
			Kind:      schema.ManyToMany,
			Target:    "com.shop.Label",
			JoinTable: &schema.JoinTable{Name: "order_label_link"},
		},
		Association{
			Field:  "notes",
			Kind:   schema.OneToMany,
			Target: "com.shop.Note",
		},
	)
	customer := testRecord("com.shop.Customer", "customers")
	tag := testRecord("com.shop.Tag", "t_tags")
	label := testRecord("com.shop.Label", "labels")
	note := testRecord("com.shop.Note", "notes")
	diags := diag.NewCollector()

	Reconcile([]*Record{order, customer, tag, label, note}, diags)

	// Unidirectional to-one: join column derived from the field name.
	acct := relByField(t, order, "customerAccount")
	if !acct.Owning || acct.InverseField != "" {
		t.Errorf("customerAccount = (owning %v, inverse %q), want unidirectional owner", acct.Owning, acct.InverseField)
	}
	if acct.JoinColumn != "customer_account_id" {
		t.Errorf("customerAccount.JoinColumn = %q, want customer_account_id", acct.JoinColumn)
	}

	// Many-to-many without declared join metadata: table and columns derived
	// from the two sides, the target's resolved table included.
	tags := relByField(t, order, "tags")
	if tags.JoinTable == nil {
		t.Fatal("tags.JoinTable = nil, want derived join table")
	}
	if tags.JoinTable.Name != "orders_t_tags" {
		t.Errorf("tags join table = %q, want orders_t_tags", tags.JoinTable.Name)
	}
	if tags.JoinTable.JoinColumn != "order_id" || tags.JoinTable.InverseJoinColumn != "tag_id" {
		t.Errorf("tags join columns = (%q, %q), want (order_id, tag_id)",
			tags.JoinTable.JoinColumn, tags.JoinTable.InverseJoinColumn)
	}

	// Partially declared join table: missing columns are filled in.
	labels := relByField(t, order, "labels")
	if labels.JoinTable == nil || labels.JoinTable.Name != "order_label_link" {
		t.Fatalf("labels.JoinTable = %v, want order_label_link", labels.JoinTable)
	}
	if labels.JoinTable.JoinColumn != "order_id" || labels.JoinTable.InverseJoinColumn != "label_id" {
		t.Errorf("labels join columns = (%q, %q), want defaults", labels.JoinTable.JoinColumn, labels.JoinTable.InverseJoinColumn)
	}

	// Owning one-to-many holds no join metadata at all.
	notes := relByField(t, order, "notes")
	if !notes.Owning {
		t.Error("notes.Owning = false, want true")
	}
	if notes.JoinColumn != "" || notes.JoinTable != nil {
		t.Errorf("notes join metadata = (%q, %v), want none", notes.JoinColumn, notes.JoinTable)
	}
	if notes.Fetch != schema.FetchLazy {
		t.Errorf("notes.Fetch = %q, want lazy", notes.Fetch)
	}

	if diags.Count() != 0 {
		t.Errorf("diagnostics = %v, want none", diags.All())
	}
}

func TestReconcileDoubleOwnership(t *testing.T) {
	build := func() (*Record, *Record) {
		a := testRecord("com.shop.A", "a", Association{
			Field:        "f",
			Kind:         schema.OneToOne,
			Target:       "com.shop.B",
			MappedBy:     "g",
			JoinDeclared: true,
			JoinColumn:   "b_id",
		})
		b := testRecord("com.shop.B", "b", Association{
			Field:        "g",
			Kind:         schema.OneToOne,
			Target:       "com.shop.A",
			JoinDeclared: true,
			JoinColumn:   "a_id",
		})
		return a, b
	}

	a, b := build()
	diags := diag.NewCollector()
	Reconcile([]*Record{a, b}, diags)

	f := relByField(t, a, "f")
	g := relByField(t, b, "g")
	if !f.Owning || g.Owning {
		t.Errorf("ownership = (f %v, g %v), want earlier record to own", f.Owning, g.Owning)
	}
	if f.JoinColumn != "b_id" {
		t.Errorf("f.JoinColumn = %q, want b_id", f.JoinColumn)
	}
	if g.JoinColumn != "" {
		t.Errorf("g.JoinColumn = %q, want none on the losing side", g.JoinColumn)
	}
	if g.InverseField != "f" {
		t.Errorf("g.InverseField = %q, want f", g.InverseField)
	}
	if got := countCode(diags, diag.CodeDoubleOwnership); got != 1 {
		t.Errorf("double-ownership diagnostics = %d, want 1", got)
	}

	// Same model with the records swapped: the other side wins, still exactly
	// one diagnostic.
	a, b = build()
	diags = diag.NewCollector()
	Reconcile([]*Record{b, a}, diags)

	f = relByField(t, a, "f")
	g = relByField(t, b, "g")
	if f.Owning || !g.Owning {
		t.Errorf("ownership after swap = (f %v, g %v), want g to own", f.Owning, g.Owning)
	}
	if g.JoinColumn != "a_id" {
		t.Errorf("g.JoinColumn = %q, want a_id", g.JoinColumn)
	}
	if f.InverseField != "g" {
		t.Errorf("f.InverseField = %q, want g", f.InverseField)
	}
	if got := countCode(diags, diag.CodeDoubleOwnership); got != 1 {
		t.Errorf("double-ownership diagnostics after swap = %d, want 1", got)
	}
}

func TestReconcileBothSidesInverse(t *testing.T) {
	a := testRecord("com.shop.A", "a", Association{
		Field:    "f",
		Kind:     schema.OneToOne,
		Target:   "com.shop.B",
		MappedBy: "g",
	})
	b := testRecord("com.shop.B", "b", Association{
		Field:    "g",
		Kind:     schema.OneToOne,
		Target:   "com.shop.A",
		MappedBy: "f",
	})
	diags := diag.NewCollector()

	Reconcile([]*Record{a, b}, diags)

	f := relByField(t, a, "f")
	g := relByField(t, b, "g")
	if !f.Owning || g.Owning {
		t.Errorf("ownership = (f %v, g %v), want earlier entity to own", f.Owning, g.Owning)
	}
	if f.InverseField != "g" || g.InverseField != "f" {
		t.Errorf("inverse fields = (%q, %q), want (g, f)", f.InverseField, g.InverseField)
	}
	if got := countCode(diags, diag.CodeNoOwnershipClaim); got != 1 {
		t.Errorf("no-ownership diagnostics = %d, want 1", got)
	}
}

func TestReconcileUnresolvedInverse(t *testing.T) {
	a := testRecord("com.shop.A", "a", Association{
		Field:    "partner",
		Kind:     schema.OneToOne,
		Target:   "com.shop.B",
		MappedBy: "missing",
	})
	b := testRecord("com.shop.B", "b")
	diags := diag.NewCollector()

	Reconcile([]*Record{a, b}, diags)

	partner := relByField(t, a, "partner")
	if partner.Owning {
		t.Error("partner.Owning = true, want false")
	}
	if partner.InverseField != "missing" {
		t.Errorf("partner.InverseField = %q, want declared name kept", partner.InverseField)
	}
	if got := countCode(diags, diag.CodeUnresolvedInverse); got != 1 {
		t.Errorf("unresolved-inverse diagnostics = %d, want 1", got)
	}
}

func TestReconcileUnknownTarget(t *testing.T) {
	a := testRecord("com.shop.A", "a", Association{
		Field:  "ghost",
		Kind:   schema.ManyToOne,
		Target: "com.ghost.Customer",
	})
	diags := diag.NewCollector()

	Reconcile([]*Record{a}, diags)

	// The edge survives reconciliation; referential repair during assembly is
	// what drops unknown targets.
	ghost := relByField(t, a, "ghost")
	if ghost.Target != "com.ghost.Customer" {
		t.Errorf("ghost.Target = %q, want guess kept", ghost.Target)
	}
	if !ghost.Owning {
		t.Error("ghost.Owning = false, want true")
	}
	if diags.Count() != 0 {
		t.Errorf("diagnostics = %v, want none", diags.All())
	}
}

func TestReconcileSimpleNameReanchor(t *testing.T) {
	a := testRecord("com.shop.Order", "orders", Association{
		Field:        "customer",
		Kind:         schema.ManyToMany,
		Target:       "com.shop.Customer",
		TargetSimple: "Customer",
	})
	customer := testRecord("com.crm.Customer", "crm_customers")
	diags := diag.NewCollector()

	Reconcile([]*Record{a, customer}, diags)

	rel := relByField(t, a, "customer")
	if rel.Target != "com.crm.Customer" {
		t.Errorf("Target = %q, want re-anchored com.crm.Customer", rel.Target)
	}
	if rel.JoinTable == nil || rel.JoinTable.Name != "orders_crm_customers" {
		t.Errorf("JoinTable = %v, want name derived from the resolved table", rel.JoinTable)
	}
}

func TestReconcileFetchModes(t *testing.T) {
	a := testRecord("com.shop.A", "a",
		Association{Field: "eagerList", Kind: schema.OneToMany, Target: "com.shop.B", Fetch: "eager"},
		Association{Field: "lazyRef", Kind: schema.ManyToOne, Target: "com.shop.B", Fetch: "lazy"},
		Association{Field: "oddRef", Kind: schema.ManyToOne, Target: "com.shop.B", Fetch: "weird"},
		Association{Field: "plainList", Kind: schema.ManyToMany, Target: "com.shop.B"},
	)
	b := testRecord("com.shop.B", "b")
	diags := diag.NewCollector()

	Reconcile([]*Record{a, b}, diags)

	cases := []struct {
		field string
		want  schema.Fetch
	}{
		{"eagerList", schema.FetchEager},
		{"lazyRef", schema.FetchLazy},
		{"oddRef", schema.FetchEager},
		{"plainList", schema.FetchLazy},
	}
	for _, tc := range cases {
		if got := relByField(t, a, tc.field).Fetch; got != tc.want {
			t.Errorf("%s.Fetch = %q, want %q", tc.field, got, tc.want)
		}
	}
}

func TestReconcileSelfReference(t *testing.T) {
	category := testRecord("com.shop.Category", "categories",
		Association{
			Field:    "children",
			Kind:     schema.OneToMany,
			Target:   "com.shop.Category",
			MappedBy: "parent",
		},
		Association{
			Field:        "parent",
			Kind:         schema.ManyToOne,
			Target:       "com.shop.Category",
			JoinDeclared: true,
			JoinColumn:   "parent_id",
		},
	)
	diags := diag.NewCollector()

	Reconcile([]*Record{category}, diags)

	children := relByField(t, category, "children")
	parent := relByField(t, category, "parent")
	if children.Owning || !parent.Owning {
		t.Errorf("ownership = (children %v, parent %v), want parent to own", children.Owning, parent.Owning)
	}
	if children.InverseField != "parent" || parent.InverseField != "children" {
		t.Errorf("inverse fields = (%q, %q), want (parent, children)", children.InverseField, parent.InverseField)
	}
	if parent.JoinColumn != "parent_id" {
		t.Errorf("parent.JoinColumn = %q, want parent_id", parent.JoinColumn)
	}
	if diags.Count() != 0 {
		t.Errorf("diagnostics = %v, want none", diags.All())
	}
}

func TestReconcileInvalidAssociation(t *testing.T) {
	a := testRecord("com.shop.A", "a",
		Association{Field: "bad", Kind: schema.RelKind("sideways"), Target: "com.shop.B"},
		Association{Field: "good", Kind: schema.ManyToOne, Target: "com.shop.B"},
	)
	b := testRecord("com.shop.B", "b")
	diags := diag.NewCollector()

	Reconcile([]*Record{a, b}, diags)

	if len(a.Entity.Relationships) != 1 {
		t.Fatalf("relationships = %d, want the invalid one dropped", len(a.Entity.Relationships))
	}
	if a.Entity.Relationships[0].Field != "good" {
		t.Errorf("surviving relationship = %q, want good", a.Entity.Relationships[0].Field)
	}
	if got := countCode(diags, diag.CodeInvalidAssociation); got != 1 {
		t.Errorf("invalid-association diagnostics = %d, want 1", got)
	}
}

func TestResolveAndReconcile(t *testing.T) {
	rc, diags, paths := newTestContext(t, map[string]string{
		"shop/Order.java": `
package com.shop;

import jakarta.persistence.*;
import java.util.List;
import java.util.Set;

@Entity
@Table(name = "orders")
public class Order {
    @Id
    @GeneratedValue(strategy = GenerationType.IDENTITY)
    private Long id;

    @ManyToOne(fetch = FetchType.LAZY)
    @JoinColumn(name = "customer_id")
    private Customer customer;

    @OneToMany(mappedBy = "order", cascade = CascadeType.ALL)
    private List<OrderItem> items;

    @ManyToMany
    private Set<Tag> tags;
}
`,
		"shop/OrderItem.java": `
package com.shop;

import jakarta.persistence.*;

@Entity
@Table(name = "order_items")
public class OrderItem {
    @Id
    @GeneratedValue(strategy = GenerationType.IDENTITY)
    private Long id;

    @ManyToOne
    @JoinColumn(name = "order_id")
    private Order order;
}
`,
		"shop/Customer.java": `
package com.shop;

import jakarta.persistence.*;
import java.util.List;

@Entity
public class Customer {
    @Id
    @GeneratedValue(strategy = GenerationType.IDENTITY)
    private Long id;

    @OneToMany(mappedBy = "customer")
    private List<Order> orders;
}
`,
		"shop/Tag.java": `
package com.shop;

import jakarta.persistence.*;

@Entity
public class Tag {
    @Id
    @GeneratedValue(strategy = GenerationType.IDENTITY)
    private Long id;

    private String label;
}
`,
	})

	resolver := NewResolver(rc)
	var records []*Record
	for _, name := range []string{"shop/Order.java", "shop/OrderItem.java", "shop/Customer.java", "shop/Tag.java"} {
		rec, err := resolver.ResolveEntity(context.Background(), paths[name])
		if err != nil {
			t.Fatalf("ResolveEntity(%s): %v", name, err)
		}
		if rec == nil {
			t.Fatalf("ResolveEntity(%s) returned no record", name)
		}
		records = append(records, rec)
	}

	Reconcile(records, diags)

	order, item, customer := records[0], records[1], records[2]

	items := relByField(t, order, "items")
	if items.Owning || items.InverseField != "order" {
		t.Errorf("Order.items = (owning %v, inverse %q), want non-owning via order", items.Owning, items.InverseField)
	}
	cust := relByField(t, order, "customer")
	if !cust.Owning || cust.JoinColumn != "customer_id" || cust.Fetch != schema.FetchLazy {
		t.Errorf("Order.customer = (owning %v, join %q, fetch %q), want owning customer_id lazy",
			cust.Owning, cust.JoinColumn, cust.Fetch)
	}
	if cust.InverseField != "orders" {
		t.Errorf("Order.customer.InverseField = %q, want orders", cust.InverseField)
	}

	tags := relByField(t, order, "tags")
	if tags.JoinTable == nil || tags.JoinTable.Name != "orders_tag" {
		t.Fatalf("Order.tags.JoinTable = %v, want derived orders_tag", tags.JoinTable)
	}
	if tags.JoinTable.JoinColumn != "order_id" || tags.JoinTable.InverseJoinColumn != "tag_id" {
		t.Errorf("Order.tags join columns = (%q, %q), want (order_id, tag_id)",
			tags.JoinTable.JoinColumn, tags.JoinTable.InverseJoinColumn)
	}

	rel := relByField(t, item, "order")
	if !rel.Owning || rel.JoinColumn != "order_id" || rel.InverseField != "items" {
		t.Errorf("OrderItem.order = (owning %v, join %q, inverse %q), want owning order_id items",
			rel.Owning, rel.JoinColumn, rel.InverseField)
	}

	orders := relByField(t, customer, "orders")
	if orders.Owning || orders.InverseField != "customer" {
		t.Errorf("Customer.orders = (owning %v, inverse %q), want non-owning via customer", orders.Owning, orders.InverseField)
	}

	if diags.Count() != 0 {
		t.Errorf("diagnostics = %v, want none", diags.All())
	}
}
