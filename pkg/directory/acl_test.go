package directory

import (
	"encoding/json"
	"testing"

	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleSetGrants(t *testing.T) {
	s := NewRoleSet("alice", "ops")

	assert.True(t, s.Grants([]string{"alice"}))
	assert.True(t, s.Grants([]string{"bob", "ops"}))
	assert.False(t, s.Grants([]string{"bob"}))
	assert.False(t, s.Grants(nil))

	wild := NewRoleSet(AnyRole)
	assert.True(t, wild.Grants(nil), "wildcard grants even without roles")
}

func TestRoleSetMarshalsSorted(t *testing.T) {
	buf, err := json.Marshal(NewRoleSet("zeta", "alpha", "mid"))
	require.NoError(t, err)
	assert.Equal(t, `["alpha","mid","zeta"]`, string(buf))

	buf, err = json.Marshal(NewRoleSet())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(buf))
}

func TestNewACLsSeedsOwner(t *testing.T) {
	id := &auth.Identity{Client: "alice", Attributes: []string{"ops"}}
	acls := NewACLs(TypeObject, id)

	assert.ElementsMatch(t, []string{"owner", "read", "write"}, keysOf(acls))
	assert.Equal(t, []string{"alice", "ops"}, acls["owner"].Roles())
	assert.Empty(t, acls["read"].Roles())
}

func keysOf(a ACLs) []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	return out
}

func TestEnforce(t *testing.T) {
	owner := ACLs{"owner": NewRoleSet("admin"), "read": NewRoleSet("reader")}
	ancestors := []ACLs{{"owner": NewRoleSet("root-admin")}}

	t.Run("direct grant", func(t *testing.T) {
		id := &auth.Identity{Client: "reader"}
		assert.NoError(t, Enforce(id, "/x", owner, ancestors, "read", "owner"))
	})

	t.Run("ancestor owner grant", func(t *testing.T) {
		id := &auth.Identity{Client: "root-admin"}
		assert.NoError(t, Enforce(id, "/x", owner, ancestors, "read", "owner"))
	})

	t.Run("anonymous denial is unauthenticated", func(t *testing.T) {
		err := Enforce(&auth.Identity{}, "/x", owner, ancestors, "read", "owner")
		var derr *Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, CodeUnauthenticated, derr.Code)
	})

	t.Run("authenticated denial is forbidden", func(t *testing.T) {
		err := Enforce(&auth.Identity{Client: "mallory"}, "/x", owner, ancestors, "read", "owner")
		var derr *Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, CodeForbidden, derr.Code)
	})
}

func TestValidName(t *testing.T) {
	valid := []string{"/", "/a", "/a/b", "/a/b/c", "/with-dash/and.dot"}
	for _, name := range valid {
		assert.True(t, ValidName(name), name)
	}

	invalid := []string{"", "a", "/a/", "//", "/a//b", "/a:b", "/a;b", "/a/b:c"}
	for _, name := range invalid {
		assert.False(t, ValidName(name), name)
	}
}

func TestDeclaredCategories(t *testing.T) {
	assert.Equal(t, []string{"owner", "create"}, DeclaredCategories(TypeNamespace))
	assert.Equal(t, []string{"owner", "read", "write"}, DeclaredCategories(TypeObject))
	assert.Equal(t, []string{"owner", "read"}, DeclaredCategories(TypeVersion))
	assert.Equal(t, []string{"owner"}, DeclaredCategories(TypeUpload))

	assert.True(t, CategoryDeclared(TypeObject, "write"))
	assert.False(t, CategoryDeclared(TypeNamespace, "write"))
}
