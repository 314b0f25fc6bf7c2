package rbac

// Permissions checked by the HTTP surface.
const (
	PermBankValidate  = "bank:validate"
	PermArchiveCreate = "archive:create"
	PermArchiveView   = "archive:view"
	PermWorkScore     = "work:score"
	PermWorkCorrect   = "work:correct"
)

// Roles issued at login.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Operators scan sheets; admins also build batches and correct scores.
var RolePermissions = map[string][]string{
	RoleOperator: {
		PermBankValidate,
		PermArchiveView,
		PermWorkScore,
	},
	RoleAdmin: {
		"*", // everything
	},
}
