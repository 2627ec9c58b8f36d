package handler

const (
	// BaseLayout is the default path for layout templates.
	BaseLayout = "layouts/base"

	// RootPath is the root path the route group.
	RootPath = "/"

	// RouterRootPath is the root of a fiber route group.
	RouterRootPath = ""

	// ErrNilACDFatalLogMsg is used if app or cfg or deps var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or deps is nil"

	// LocalsUser is the fiber.Locals key of the signed in user.
	LocalsUser = "CurrentUser"
)
