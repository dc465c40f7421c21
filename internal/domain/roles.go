package domain

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
	RoleSeller   = "seller"
	RoleAgent    = "agent"
	RoleBuyer    = "buyer"
)

var (
	StaffRoles  = []string{RoleAdmin, RoleEmployee}
	ListerRoles = []string{RoleSeller, RoleAgent}
	AllRoles    = []string{RoleAdmin, RoleEmployee, RoleSeller, RoleAgent, RoleBuyer}
)

func IsStaff(role string) bool  { return role == RoleAdmin || role == RoleEmployee }
func IsLister(role string) bool { return role == RoleSeller || role == RoleAgent }
