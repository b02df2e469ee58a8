// Package api implements the daemon's core HTTP surface: the built-in
// endpoint namespaces served alongside plugin-contributed routers.
package api

import (
	"net/http"

	"github.com/inkwell-notes/inkwell/internal/auth"
	"github.com/inkwell-notes/inkwell/internal/services"
)

// CoreNamespaces builds the handler for every built-in namespace, keyed by
// the namespace segment it is mounted under. These namespaces always win
// over plugin contributions with the same name.
func CoreNamespaces(c *services.Container, sessions *auth.Sessions, collabWS http.Handler) map[string]http.Handler {
	return map[string]http.Handler{
		"notes":  NewNotesHandler(c.Documents).Routes(),
		"tasks":  NewTasksHandler(c.Tasks).Routes(),
		"search": NewSearchHandler(c.Search).Routes(),
		"graph":  NewGraphHandler(c.Graph).Routes(),
		"export": NewExportHandler(c.Export).Routes(),
		"collab": NewCollabHandler(sessions, collabWS).Routes(),
	}
}
