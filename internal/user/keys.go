package user

// Key templates for user and email-lock rows.
const (
	PrefixEmail   = "EMAIL#"
	SKProfile     = "PROFILE"
	SKUniqueEmail = "UNIQUE_EMAILS"
)

// Attribute names for DynamoDB items.
const (
	AttrID        = "id"
	AttrName      = "name"
	AttrEmail     = "email"
	AttrUserID    = "userId"
	AttrType      = "entityType"
	AttrCreatedAt = "createdAt"
)

// Entity type discriminators.
const (
	TypeUser      = "user"
	TypeEmailLock = "email_lock"
)
