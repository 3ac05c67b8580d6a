package roles

import (
	"context"

	"github.com/taskops/assignbot/internal/logging"
	"github.com/taskops/assignbot/internal/models"
)

// Source provides the two GitHub lookups a role can be derived from.
type Source interface {
	OrgMemberRole(ctx context.Context, org, username string) (string, error)
	RepoPermission(ctx context.Context, owner, repo, username string) (string, error)
}

// Resolver determines a participant's role and concurrent-task limit from org
// membership and repo collaborator permission.
type Resolver struct {
	src    Source
	org    string
	limits map[string]int
	log    *logging.Logger
}

// NewResolver creates a resolver. limits is keyed by canonical role name
// ("admin", "collaborator", "contributor").
func NewResolver(src Source, org string, limits map[string]int, log *logging.Logger) *Resolver {
	return &Resolver{src: src, org: org, limits: limits, log: log}
}

// canonicalOrgRole maps GitHub org membership roles onto plugin roles.
func canonicalOrgRole(role string) models.Role {
	switch role {
	case "admin":
		return models.RoleAdmin
	case "member":
		return models.RoleCollaborator
	default:
		return models.RoleContributor
	}
}

// canonicalRepoRole maps GitHub collaborator permissions onto plugin roles.
func canonicalRepoRole(permission string) models.Role {
	switch permission {
	case "admin":
		return models.RoleAdmin
	case "maintain", "write":
		return models.RoleCollaborator
	default:
		return models.RoleContributor
	}
}

// Resolve determines the participant's role and limit. Lookup failures are
// never fatal: if both lookups fail the participant degrades to the role with
// the smallest configured limit.
func (r *Resolver) Resolve(ctx context.Context, owner, repo, username string) models.Participant {
	p := models.Participant{Username: username}
	resolved := false

	if orgRole, err := r.src.OrgMemberRole(ctx, r.org, username); err == nil {
		role := canonicalOrgRole(orgRole)
		p.Role = role
		if limit, ok := r.limits[string(role)]; ok {
			p.Limit = limit
			resolved = true
		}
	} else {
		r.log.Debug("org membership lookup failed", "user", username, "error", err)
	}

	// The repo collaborator permission takes final precedence over the org
	// role when both resolve to a configured limit.
	if permission, err := r.src.RepoPermission(ctx, owner, repo, username); err == nil {
		role := canonicalRepoRole(permission)
		if limit, ok := r.limits[string(role)]; ok {
			p.Role = role
			p.Limit = limit
			resolved = true
		}
	} else {
		r.log.Debug("repo permission lookup failed", "user", username, "error", err)
	}

	if !resolved {
		fallbackRole, fallbackLimit := smallestLimit(r.limits)
		if p.Role == "" {
			p.Role = models.Role(fallbackRole)
		}
		p.Limit = fallbackLimit
		r.log.Info("role resolution degraded to conservative fallback",
			"user", username, "role", p.Role, "limit", p.Limit)
	}

	return p
}

func smallestLimit(limits map[string]int) (string, int) {
	role := ""
	limit := 0
	for r, l := range limits {
		if role == "" || l < limit || (l == limit && r < role) {
			role = r
			limit = l
		}
	}
	return role, limit
}
