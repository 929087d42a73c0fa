package constants

// Platform permissions carried in the access token
const (
	PermAdminFull    = "bluefleet.admin.full-permit"
	PermSupportFull  = "bluefleet.support.full-permit"
	PermOwnerFull    = "bluefleet.owner.full-permit"
	PermOperatorFull = "bluefleet.operator.full-permit"

	// Special permissions
	PermAny = "any"
)

// Permission groups for convenience
var (
	AdminPermissions = []string{
		PermAdminFull,
		PermSupportFull,
	}

	PartyPermissions = []string{
		PermOwnerFull,
		PermOperatorFull,
		PermAdminFull,
		PermSupportFull,
	}
)

// Roles returned by the user directory, mapped to permissions when a token carries none
var RolePermissions = map[string][]string{
	"admin":    {PermAdminFull},
	"support":  {PermSupportFull},
	"owner":    {PermOwnerFull},
	"operator": {PermOperatorFull},
}
