package usercontext

// Session and locals keys shared between middleware and controllers.
const (
	KeyUserContext   = "USER_CONTEXT"
	KeyUserID        = "USER_ID"
	KeyUserName      = "USER_NAME"
	KeyUserRole      = "USER_ROLE"
	KeyFromProtected = "FROM_PROTECTED"
)
