package action

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type typedHandler struct{}

func (*typedHandler) ServeHTTP(http.ResponseWriter, *http.Request) {}

func plainHandler(http.ResponseWriter, *http.Request) {}

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		name string
		sym  string
		want Identity
	}{
		{
			name: "pointer receiver method value",
			sym:  "example.com/app/items.(*Store).Show-fm",
			want: Identity{Package: "example.com/app/items", Controller: "Store", Action: "Show"},
		},
		{
			name: "value receiver method expression",
			sym:  "example.com/app/items.Store.List",
			want: Identity{Package: "example.com/app/items", Controller: "Store", Action: "List"},
		},
		{
			name: "plain function",
			sym:  "main.handler",
			want: Identity{Package: "main", Action: "handler"},
		},
		{
			name: "generic receiver",
			sym:  "example.com/app/items.(*Repo[...]).Get-fm",
			want: Identity{Package: "example.com/app/items", Controller: "Repo", Action: "Get"},
		},
		{
			name: "dotted module path",
			sym:  "example.com/a.b/pkg.Fn",
			want: Identity{Package: "example.com/a.b/pkg", Action: "Fn"},
		},
		{
			name: "no package",
			sym:  "weird",
			want: Identity{Action: "weird"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSymbol(tt.sym))
		})
	}
}

func TestFuncIdentity(t *testing.T) {
	t.Run("method value", func(t *testing.T) {
		id := FuncIdentity((&itemStore{}).Show)
		assert.Equal(t, "github.com/vitalvas/routeprobe/action", id.Package)
		assert.Equal(t, "itemStore", id.Controller)
		assert.Equal(t, "Show", id.Action)
		assert.Contains(t, id.Signature, "func(int)")
	})

	t.Run("function", func(t *testing.T) {
		id := FuncIdentity(plainHandler)
		assert.Equal(t, "", id.Controller)
		assert.Equal(t, "plainHandler", id.Action)
	})

	t.Run("not a function", func(t *testing.T) {
		assert.True(t, FuncIdentity(42).IsZero())
		assert.True(t, FuncIdentity(nil).IsZero())
	})
}

func TestIdentityOf(t *testing.T) {
	t.Run("nil handler", func(t *testing.T) {
		assert.True(t, IdentityOf(nil).IsZero())
	})

	t.Run("action reports its own identity", func(t *testing.T) {
		a := New((&itemStore{}).Show, Path("id"), Named("Items", ""))
		assert.Equal(t, "Items.Show", IdentityOf(a).String())
	})

	t.Run("handler func", func(t *testing.T) {
		assert.Equal(t, "plainHandler", IdentityOf(http.HandlerFunc(plainHandler)).Action)
	})

	t.Run("handler type", func(t *testing.T) {
		id := IdentityOf(&typedHandler{})
		assert.Equal(t, "typedHandler", id.Controller)
		assert.Equal(t, "ServeHTTP", id.Action)
	})
}

func TestIdentity(t *testing.T) {
	a := Identity{Package: "x", Controller: "Items", Action: "Show"}
	b := Identity{Package: "y", Controller: "Items", Action: "Show", Signature: "func()"}

	assert.True(t, a.Equal(Identity{Package: "x", Controller: "Items", Action: "Show", Signature: "func()"}))
	assert.False(t, a.Equal(b), "same type name in another package")
	assert.False(t, a.Equal(Identity{Package: "x", Controller: "Items", Action: "List"}))
	assert.Equal(t, "x.Items.Show", a.Qualified())
	assert.Equal(t, "Show", Identity{Action: "Show"}.Qualified())
	assert.Equal(t, "Items.Show", a.String())
	assert.Equal(t, "Show", Identity{Action: "Show"}.String())
	assert.True(t, Identity{Package: "x"}.IsZero())
}
