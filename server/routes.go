package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.StdMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.StdMiddleware()...))

	// OAuth flow: neither response may be cached
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.StdMiddleware(s.NoStoreMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.StdMiddleware(s.NoStoreMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteCallbackAlias, ChainMiddleware(s.CallbackHandler(), s.StdMiddleware(s.NoStoreMiddleware)...))
}
