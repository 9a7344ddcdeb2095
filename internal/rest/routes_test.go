package rest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoutedService(t *testing.T) *Service {
	t.Helper()
	s, _, _ := newTestService(t, nil)
	return s
}

func TestMatchAddressForms(t *testing.T) {
	s := newRoutedService(t)

	cases := []struct {
		path string
		want params
	}{
		{"/", params{name: "/"}},
		{"/foo", params{name: "/foo"}},
		{"/foo/", params{name: "/foo"}},
		{"/foo/bar", params{name: "/foo/bar"}},
		{"/foo/bar/baz", params{name: "/foo/bar/baz"}},
		{"/foo/bar:v1", params{name: "/foo/bar", version: "v1"}},
		{"/;acl", params{name: "/"}},
		{"/;acl/owner", params{name: "/", access: "owner"}},
		{"/;acl/owner/alice", params{name: "/", access: "owner", role: "alice"}},
		{"/foo;acl", params{name: "/foo"}},
		{"/foo/bar;acl/read", params{name: "/foo/bar", access: "read"}},
		{"/foo/bar;acl/read/", params{name: "/foo/bar", access: "read"}},
		{"/foo/bar;acl/read/bob", params{name: "/foo/bar", access: "read", role: "bob"}},
		{"/foo/bar:v1;acl", params{name: "/foo/bar", version: "v1"}},
		{"/foo/bar:v1;acl/read", params{name: "/foo/bar", version: "v1", access: "read"}},
		{"/foo/bar:v1;acl/read/bob", params{name: "/foo/bar", version: "v1", access: "read", role: "bob"}},
		{"/foo/bar;upload", params{name: "/foo/bar"}},
		{"/foo/bar;upload/", params{name: "/foo/bar"}},
		{"/foo/bar;upload/j1", params{name: "/foo/bar", job: "j1"}},
		{"/foo/bar;upload/j1/3", params{name: "/foo/bar", job: "j1", chunk: 3}},
		{"/foo/bar;upload/j1/0", params{name: "/foo/bar", job: "j1", chunk: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rt, p, err := s.match(tc.path)
			require.NoError(t, err)
			require.NotNil(t, rt, "no route matched %s", tc.path)
			assert.Equal(t, tc.want, p)
		})
	}
}

func TestMatchRejectsUnknownForms(t *testing.T) {
	s := newRoutedService(t)

	cases := []string{
		"/foo//bar",     // empty segment
		"/foo;badthing", // unknown suffix
		"/foo:v1:v2",    // double version
		"/foo/bar:",     // empty version
		"/foo/bar;acl//",
		"//",
	}
	for _, path := range cases {
		t.Run(path, func(t *testing.T) {
			rt, _, err := s.match(path)
			require.NoError(t, err)
			assert.Nil(t, rt, "path %s should not match", path)
		})
	}
}

func TestMatchRouteMethodTables(t *testing.T) {
	s := newRoutedService(t)

	// the root namespace cannot be replaced or deleted; sub-resource forms
	// expose only the methods their resource supports
	cases := []struct {
		path    string
		method  string
		allowed bool
	}{
		{"/", http.MethodGet, true},
		{"/", http.MethodPut, false},
		{"/", http.MethodDelete, false},
		{"/foo", http.MethodPut, true},
		{"/foo:v1", http.MethodPut, false},
		{"/foo:v1", http.MethodDelete, true},
		{"/foo;acl", http.MethodGet, true},
		{"/foo;acl", http.MethodPut, false},
		{"/foo;upload", http.MethodPost, true},
		{"/foo;upload", http.MethodGet, false},
		{"/foo;upload/j1", http.MethodPost, true},
		{"/foo;upload/j1/0", http.MethodPut, true},
		{"/foo;upload/j1/0", http.MethodGet, false},
	}
	for _, tc := range cases {
		rt, _, err := s.match(tc.path)
		require.NoError(t, err)
		require.NotNil(t, rt, "no route matched %s", tc.path)
		_, ok := rt.methods[tc.method]
		assert.Equal(t, tc.allowed, ok, "%s %s", tc.method, tc.path)
	}
}
