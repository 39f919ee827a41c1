package service

import "github.com/ssoworks/sso-service/internal/domain"

// IdentityView is the response-ready projection of a principal.
type IdentityView struct {
	User        string
	Authorities []string
	Projects    map[string]domain.ProjectRole
}

// HasProjects reports whether the principal exposed project roles.
func (v IdentityView) HasProjects() bool {
	return v.Projects != nil
}

// ProjectIdentity projects p without retaining references to its slices or maps.
func ProjectIdentity(p domain.Principal) IdentityView {
	view := IdentityView{
		User:        p.Name(),
		Authorities: append(make([]string, 0, len(p.Authorities())), p.Authorities()...),
	}
	if holder, ok := p.(domain.ProjectRoleHolder); ok {
		roles := holder.ProjectRoles()
		view.Projects = make(map[string]domain.ProjectRole, len(roles))
		for project, role := range roles {
			view.Projects[project] = role
		}
	}
	return view
}
