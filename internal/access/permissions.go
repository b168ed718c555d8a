package access

const (
	// FullAccessGroup short-circuits resolution: members hold every
	// permission without touching the cache or the store.
	FullAccessGroup = "Administrators"

	// PermAllAccess is the universal-access marker returned for members
	// of the full-access group.
	PermAllAccess = "admin:all"
)

const (
	PermUsersRead    = "users:read"
	PermUsersWrite   = "users:write"
	PermUsersDelete  = "users:delete"
	PermModulesRead  = "modules:read"
	PermModulesWrite = "modules:write"
)

// BuiltinPermissions is the catalog seeded by the CRUD layer; listed here
// so callers can reference stable names.
var BuiltinPermissions = map[string]string{
	PermAllAccess:    "Unrestricted access",
	PermUsersRead:    "View users",
	PermUsersWrite:   "Manage users",
	PermUsersDelete:  "Delete users",
	PermModulesRead:  "View modules",
	PermModulesWrite: "Manage modules",
}
