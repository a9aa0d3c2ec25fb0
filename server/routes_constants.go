package server

import "github.com/jrsteele09/go-auth-gateway/internal/config"

// Route path constants
const (
	RouteIndex    = "/{$}"
	RouteLogin    = "/login"
	RouteCallback = config.CallbackPath
	RouteHealth   = "/healthz"

	// RouteCallbackAlias serves clients registered with the short path
	RouteCallbackAlias = "/callback"
)
