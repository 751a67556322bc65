package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.statusHandler.DeviceInfo)
	s.router.GET("/health", s.statusHandler.Health)
	s.router.GET("/live", s.liveHandler.Stream)
}
