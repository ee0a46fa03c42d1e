package websocket

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/satriahrh/white-fusion/domain"
)

// Handler serves "/ws". It expects the authenticated user in the echo
// context and blocks until the connection closes.
func (s *Server) Handler(c echo.Context) error {
	user, ok := c.Get(domain.CurrentUserKey).(*domain.User)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(c.Request().Context(), conn, user.ID)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run()
	<-client.Context().Done()
	return nil
}
