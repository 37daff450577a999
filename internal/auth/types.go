package auth

import "time"

// Kind discriminates the three principal tables behind one descriptor shape.
type Kind string

const (
	KindUser         Kind = "user"
	KindMunicipality Kind = "municipality"
	KindCompany      Kind = "company"
)

// Role classifies user accounts. Municipalities and companies carry no role.
type Role string

const (
	RoleYouth                Role = "YOUTH"
	RoleAdolescents          Role = "ADOLESCENTS"
	RoleCompanies            Role = "COMPANIES"
	RoleMunicipalGovernments Role = "MUNICIPAL_GOVERNMENTS"
	RoleTrainingCenters      Role = "TRAINING_CENTERS"
	RoleNGOsAndFoundations   Role = "NGOS_AND_FOUNDATIONS"
	RoleInstructor           Role = "INSTRUCTOR"
	RoleSuperadmin           Role = "SUPERADMIN"
)

// Roles lists every accepted role value, in declaration order.
var Roles = []Role{
	RoleYouth,
	RoleAdolescents,
	RoleCompanies,
	RoleMunicipalGovernments,
	RoleTrainingCenters,
	RoleNGOsAndFoundations,
	RoleInstructor,
	RoleSuperadmin,
}

// Valid reports whether r is one of the fixed role values.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is a platform account with a role-based profile.
type User struct {
	ID           string
	Username     string
	Role         Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Municipality is an institutional account for a municipal government office.
type Municipality struct {
	ID           string
	Username     string
	Name         string
	Department   string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Company is an employer account.
type Company struct {
	ID             string
	Username       string
	Name           string
	BusinessSector string
	PasswordHash   string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefreshToken is a persisted one-time-use refresh credential. Tokens are
// revoked on use or logout, never deleted.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Principal is the normalized descriptor attached to the request context after
// authentication. It is the only principal shape downstream code sees: the
// three tables collapse into Kind plus an optional Role.
type Principal struct {
	Kind     Kind
	ID       string
	Username string
	Role     Role
}

// IsSuperadmin reports whether the principal is a SUPERADMIN user. Only role
// gates honor this; entity-type gates deliberately do not.
func (p Principal) IsSuperadmin() bool {
	return p.Kind == KindUser && p.Role == RoleSuperadmin
}
