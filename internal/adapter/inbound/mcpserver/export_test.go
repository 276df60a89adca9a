package mcpserver

// SetMaxLineBytes lowers the stdio message limit for tests.
func (s *Server) SetMaxLineBytes(n int) {
	s.maxLineBytes = n
}
