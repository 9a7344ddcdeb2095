package rest

import (
	"net/http"
	"regexp"
	"strconv"
)

// The address grammar. Path segments exclude '/', ':', and ';' so that
// version tokens and sub-resource suffixes parse without ambiguity:
//
//	/{path}{name}                     namespace or object
//	/{path}{name}:{version}           one object version
//	/{path}{name}[:{version}];acl     full ACL mapping (and root "/;acl")
//	/...;acl/{access}                 one access category
//	/...;acl/{access}/{role}          one role entry
//	/{path}{name};upload              upload-job collection
//	/{path}{name};upload/{job}        one upload job
//	/{path}{name};upload/{job}/{n}    chunk n of a job
const segment = `[^/:;]+`

// nameExpr captures the parent path (group "path", possibly empty, with a
// trailing slash per component) and the final segment (group "name").
const nameExpr = `((?:` + segment + `/)*)(` + segment + `)`

// params carries the values bound from a matched address.
type params struct {
	// name is the canonical resource name, "/" for the root namespace
	name string

	// version is the explicit version token, "" when addressing by name
	version string

	// access and role address ACL sub-resources
	access string
	role   string

	// job and chunk address upload jobs
	job   string
	chunk int64
}

type handlerFunc func(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error

// route pairs an anchored address pattern with its method table. groups
// names the capture groups in order; unknown methods answer 405.
type route struct {
	pattern *regexp.Regexp
	groups  []string
	methods map[string]handlerFunc
}

// bind extracts params from a pattern match.
func (rt *route) bind(m []string) (params, error) {
	p := params{name: "/"}
	var path, name string
	for i, g := range rt.groups {
		val := m[i+1]
		switch g {
		case "path":
			path = val
		case "name":
			name = val
		case "version":
			p.version = val
		case "access":
			p.access = val
		case "role":
			p.role = val
		case "job":
			p.job = val
		case "chunk":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return p, errBadRequest("malformed chunk number")
			}
			p.chunk = n
		}
	}
	if name != "" {
		p.name = "/" + path + name
	}
	return p, nil
}

// buildRoutes compiles the route table. Order matters: sub-resource forms
// (ACL entries, upload chunks) come before their parents so the longest
// suffix wins, and the bare-name form comes last.
func (s *Service) buildRoutes() []route {
	aclEntry := map[string]handlerFunc{
		http.MethodGet:    s.getACLEntry,
		http.MethodPut:    s.putACLEntry,
		http.MethodDelete: s.deleteACLEntry,
	}
	aclCategory := map[string]handlerFunc{
		http.MethodGet:    s.getACL,
		http.MethodPut:    s.putACL,
		http.MethodDelete: s.deleteACL,
	}
	aclSet := map[string]handlerFunc{
		http.MethodGet: s.getACLs,
	}
	uploadChunk := map[string]handlerFunc{
		http.MethodPut: s.putUploadChunk,
	}
	uploadJob := map[string]handlerFunc{
		http.MethodGet:    s.getUpload,
		http.MethodPost:   s.postUploadFinish,
		http.MethodDelete: s.deleteUpload,
	}
	uploadCollection := map[string]handlerFunc{
		http.MethodPost: s.postUpload,
	}
	version := map[string]handlerFunc{
		http.MethodGet:    s.getResource,
		http.MethodDelete: s.deleteResource,
	}
	name := map[string]handlerFunc{
		http.MethodGet:    s.getResource,
		http.MethodPut:    s.putResource,
		http.MethodDelete: s.deleteResource,
	}
	root := map[string]handlerFunc{
		http.MethodGet: s.getResource,
	}

	re := regexp.MustCompile
	return []route{
		{re(`^/` + nameExpr + `:(` + segment + `);acl/(` + segment + `)/(` + segment + `)$`), []string{"path", "name", "version", "access", "role"}, aclEntry},
		{re(`^/` + nameExpr + `;acl/(` + segment + `)/(` + segment + `)$`), []string{"path", "name", "access", "role"}, aclEntry},
		{re(`^/;acl/(` + segment + `)/(` + segment + `)$`), []string{"access", "role"}, aclEntry},
		{re(`^/` + nameExpr + `:(` + segment + `);acl/(` + segment + `)/?$`), []string{"path", "name", "version", "access"}, aclCategory},
		{re(`^/` + nameExpr + `;acl/(` + segment + `)/?$`), []string{"path", "name", "access"}, aclCategory},
		{re(`^/;acl/(` + segment + `)/?$`), []string{"access"}, aclCategory},
		{re(`^/` + nameExpr + `:(` + segment + `);acl/?$`), []string{"path", "name", "version"}, aclSet},
		{re(`^/` + nameExpr + `;acl/?$`), []string{"path", "name"}, aclSet},
		{re(`^/;acl/?$`), nil, aclSet},
		{re(`^/` + nameExpr + `;upload/(` + segment + `)/([0-9]+)$`), []string{"path", "name", "job", "chunk"}, uploadChunk},
		{re(`^/` + nameExpr + `;upload/(` + segment + `)/?$`), []string{"path", "name", "job"}, uploadJob},
		{re(`^/` + nameExpr + `;upload/?$`), []string{"path", "name"}, uploadCollection},
		{re(`^/` + nameExpr + `:(` + segment + `)$`), []string{"path", "name", "version"}, version},
		{re(`^/` + nameExpr + `/?$`), []string{"path", "name"}, name},
		{re(`^/$`), nil, root},
	}
}

// match finds the first route whose pattern covers the request path.
func (s *Service) match(path string) (*route, params, error) {
	for i := range s.routes {
		rt := &s.routes[i]
		m := rt.pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		p, err := rt.bind(m)
		return rt, p, err
	}
	return nil, params{}, nil
}
