package domain

// ProjectRole enumerates the roles a user may hold on a project.
type ProjectRole string

const (
	ProjectRoleOperator       ProjectRole = "OPERATOR"
	ProjectRoleCustomer       ProjectRole = "CUSTOMER"
	ProjectRoleMember         ProjectRole = "MEMBER"
	ProjectRoleProjectManager ProjectRole = "PROJECT_MANAGER"
)

// Valid reports whether r is a known role.
func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectRoleOperator, ProjectRoleCustomer, ProjectRoleMember, ProjectRoleProjectManager:
		return true
	}
	return false
}

// Principal is an authenticated identity resolved by the authentication layer.
type Principal interface {
	Name() string
	Authorities() []string
}

// ProjectRoleHolder is implemented by principals that carry per-project roles.
type ProjectRoleHolder interface {
	ProjectRoles() map[string]ProjectRole
}

// User is a plain authenticated principal.
type User struct {
	Username string
	Granted  []string
}

func (u User) Name() string          { return u.Username }
func (u User) Authorities() []string { return u.Granted }

// ProjectUser is a principal that also carries project role assignments.
type ProjectUser struct {
	User
	Projects map[string]ProjectRole
}

func (u ProjectUser) ProjectRoles() map[string]ProjectRole { return u.Projects }

// AuthenticationOf snapshots a principal for storage with a token.
func AuthenticationOf(p Principal) Authentication {
	auth := Authentication{
		Name:        p.Name(),
		Authorities: append([]string(nil), p.Authorities()...),
	}
	if holder, ok := p.(ProjectRoleHolder); ok {
		roles := holder.ProjectRoles()
		auth.ProjectRoles = make(map[string]ProjectRole, len(roles))
		for project, role := range roles {
			auth.ProjectRoles[project] = role
		}
	}
	return auth
}

// PrincipalFromAuthentication rebuilds the principal captured by AuthenticationOf.
func PrincipalFromAuthentication(a Authentication) Principal {
	user := User{Username: a.Name, Granted: append([]string(nil), a.Authorities...)}
	if a.ProjectRoles == nil {
		return user
	}
	projects := make(map[string]ProjectRole, len(a.ProjectRoles))
	for project, role := range a.ProjectRoles {
		projects[project] = role
	}
	return ProjectUser{User: user, Projects: projects}
}
