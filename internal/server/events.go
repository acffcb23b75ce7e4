package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leofalp/nodeflow/core/engine"
)

// handleEvents streams the job's events as server-sent events named after
// the event kind. Attaching starts the job when it has not run yet; the
// stream ends after the done or terminate event or when the client leaves.
func (s *Server) handleEvents(c *gin.Context) {
	id := c.Param("id")
	job, ok := s.engine.Job(id)
	if !ok {
		sendError(c, http.StatusNotFound, engine.ErrJobNotFound.Error()+": "+id)
		return
	}

	events, err := job.Events()
	if errors.Is(err, engine.ErrSessionAttached) {
		sendError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer job.Detach(events)

	if job.State() == engine.StateCreated {
		go s.run(job)
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(event.Kind), event)
			return !event.Terminal()
		case <-ctx.Done():
			return false
		}
	})
}
