package rest

import (
	"encoding/json"
	"net/http"
)

// getACLs serves the full ACL mapping of a resource as a JSON object of
// category names to sorted role arrays.
func (s *Service) getACLs(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	res, err := s.resolve(r.Context(), p)
	if err != nil {
		return err
	}
	acls, err := s.dir.GetACLs(r.Context(), res, rc.identity)
	if err != nil {
		return err
	}
	return writeJSON(rc, w, http.StatusOK, acls)
}

// getACL serves one access category as a sorted JSON array of roles. A
// cleared category reads as an empty array, never as absent.
func (s *Service) getACL(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	res, err := s.resolve(r.Context(), p)
	if err != nil {
		return err
	}
	roles, err := s.dir.GetACL(r.Context(), res, p.access, rc.identity)
	if err != nil {
		return err
	}
	return writeJSON(rc, w, http.StatusOK, roles)
}

// putACL replaces an access category wholesale. The body must be an
// application/json flat array of role strings; anything else is rejected
// before any state changes.
func (s *Service) putACL(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	res, err := s.resolve(ctx, p)
	if err != nil {
		return err
	}

	if mediaType(r.Header.Get("Content-Type")) != "application/json" {
		return errBadRequest("ACL body must be application/json")
	}
	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return errBadRequest("malformed ACL body")
	}
	arr, ok := raw.([]any)
	if !ok {
		return errBadRequest("ACL body must be a flat array of role strings")
	}
	roles := make([]string, 0, len(arr))
	for _, v := range arr {
		role, ok := v.(string)
		if !ok {
			return errBadRequest("ACL body must be a flat array of role strings")
		}
		roles = append(roles, role)
	}

	if err := s.dir.SetACL(ctx, res, p.access, roles, rc.identity); err != nil {
		return err
	}
	rc.Trace("set ACL %s;acl/%s roles %v", res.String(), p.access, roles)
	writeNoContent(w)
	return nil
}

// deleteACL resets an access category to the empty set.
func (s *Service) deleteACL(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	res, err := s.resolve(ctx, p)
	if err != nil {
		return err
	}
	if err := s.dir.ClearACL(ctx, res, p.access, rc.identity); err != nil {
		return err
	}
	rc.Trace("cleared ACL %s;acl/%s", res.String(), p.access)
	writeNoContent(w)
	return nil
}

// getACLEntry probes membership of one role in a category, answering the
// role itself when present.
func (s *Service) getACLEntry(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	res, err := s.resolve(r.Context(), p)
	if err != nil {
		return err
	}
	if err := s.dir.CheckACLRole(r.Context(), res, p.access, p.role, rc.identity); err != nil {
		return err
	}
	return writeJSON(rc, w, http.StatusOK, p.role)
}

// putACLEntry adds one role to a category. Adding a role that is already
// a member succeeds without change.
func (s *Service) putACLEntry(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	res, err := s.resolve(ctx, p)
	if err != nil {
		return err
	}
	if err := s.dir.SetACLRole(ctx, res, p.access, p.role, rc.identity); err != nil {
		return err
	}
	rc.Trace("added role %s to %s;acl/%s", p.role, res.String(), p.access)
	writeNoContent(w)
	return nil
}

// deleteACLEntry removes one role from a category. Removing an absent
// role is NotFound.
func (s *Service) deleteACLEntry(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	res, err := s.resolve(ctx, p)
	if err != nil {
		return err
	}
	if err := s.dir.DropACLRole(ctx, res, p.access, p.role, rc.identity); err != nil {
		return err
	}
	rc.Trace("dropped role %s from %s;acl/%s", p.role, res.String(), p.access)
	writeNoContent(w)
	return nil
}
