package source

import "testing"

func TestQualify(t *testing.T) {
	tests := []struct {
		pkg  string
		name string
		want string
	}{
		{"com.shop", "Order", "com.shop.Order"},
		{"", "Order", "Order"},
		{"com.shop", "com.other.Order", "com.other.Order"},
	}

	for _, tt := range tests {
		if got := Qualify(tt.pkg, tt.name); got != tt.want {
			t.Errorf("Qualify(%q, %q) = %q, want %q", tt.pkg, tt.name, got, tt.want)
		}
	}
}

func TestSimpleName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"com.shop.Order", "Order"},
		{"Order", "Order"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SimpleName(tt.name); got != tt.want {
			t.Errorf("SimpleName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAnnotationArg(t *testing.T) {
	a := Annotation{
		Name: "Column",
		Args: map[string][]string{
			"name":    {"order_total"},
			"cascade": {"PERSIST", "MERGE"},
		},
	}

	if got := a.Arg("name"); got != "order_total" {
		t.Errorf("Arg(name) = %q, want %q", got, "order_total")
	}
	if got := a.Arg("missing"); got != "" {
		t.Errorf("Arg(missing) = %q, want empty", got)
	}
	if got := len(a.Values("cascade")); got != 2 {
		t.Errorf("len(Values(cascade)) = %d, want 2", got)
	}
}

func TestFilePrimary(t *testing.T) {
	f := &File{Path: "Order.java", Types: []*TypeDecl{{Name: "Order"}, {Name: "Helper"}}}
	if got := f.Primary(); got == nil || got.Name != "Order" {
		t.Errorf("Primary() = %+v, want the Order declaration", got)
	}

	empty := &File{Path: "package-info.java"}
	if got := empty.Primary(); got != nil {
		t.Errorf("Primary() on empty file = %+v, want nil", got)
	}
}
