package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/internal/jsonschema"
)

// maxProjectSize bounds the body of POST /jobs.
const maxProjectSize = 4 << 20

// nodeView is one entry of GET /nodes.
type nodeView struct {
	ID          string             `json:"id"`
	Category    string             `json:"category"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Purpose     string             `json:"purpose"`
	Iterable    bool               `json:"iterable,omitempty"`
	Generics    []string           `json:"generics,omitempty"`
	Inputs      *jsonschema.Schema `json:"inputs"`
	Outputs     *jsonschema.Schema `json:"outputs"`
}

type compatibilityRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleHealth(c *gin.Context) {
	sendSuccess(c, map[string]any{"status": "healthy", "timestamp": time.Now().Unix(), "version": Version})
}

func (s *Server) handleNodes(c *gin.Context) {
	definitions := s.engine.Definitions()
	views := make([]nodeView, 0, len(definitions))
	for _, definition := range definitions {
		purpose := definition.Purpose
		if purpose == "" {
			purpose = "normal"
		}
		views = append(views, nodeView{
			ID:          definition.ID(),
			Category:    definition.Category,
			Name:        definition.Name,
			Description: definition.Description,
			Purpose:     string(purpose),
			Iterable:    definition.Iterable,
			Generics:    definition.Generics(),
			Inputs:      jsonschema.FromPorts(definition.Inputs),
			Outputs:     jsonschema.FromPorts(definition.Outputs),
		})
	}
	sendSuccess(c, map[string]any{"nodes": views, "integrations": s.engine.Integrations()})
}

func (s *Server) handleCompatibility(c *gin.Context) {
	var request compatibilityRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	source, err := typemodel.Parse(request.Source)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid source shape: "+err.Error())
		return
	}
	target, err := typemodel.Parse(request.Target)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid target shape: "+err.Error())
		return
	}

	converters := s.engine.Converters()
	compatible := converters.Compatible(source, target)
	faulty := false
	if compatible {
		converter, err := converters.Synthesize(source, target)
		if err != nil {
			sendError(c, http.StatusInternalServerError, err.Error())
			return
		}
		faulty = converter.Faulty
	}
	sendSuccess(c, map[string]any{
		"source":     source.Signature(),
		"target":     target.Signature(),
		"compatible": compatible,
		"faulty":     faulty,
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProjectSize+1))
	if err != nil {
		sendError(c, http.StatusBadRequest, "Reading body: "+err.Error())
		return
	}
	if len(body) > maxProjectSize {
		sendError(c, http.StatusRequestEntityTooLarge, "Project is too large")
		return
	}

	parsed, err := project.Parse(body)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.engine.Submit(c.Request.Context(), parsed)
	if err != nil {
		if errors.Is(err, project.ErrInvalidProject) {
			sendError(c, http.StatusBadRequest, err.Error())
			return
		}
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	run, _ := strconv.ParseBool(c.Query("run"))
	if run {
		go s.run(job)
	}
	sendCreated(c, map[string]any{"jobId": job.ID, "state": string(job.State())})
}

func (s *Server) handleStatus(c *gin.Context) {
	record, err := s.engine.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, engine.ErrJobNotFound) {
		sendError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, map[string]any{"job": record})
}

func (s *Server) handleTerminate(c *gin.Context) {
	var request terminateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			sendError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
			return
		}
	}

	id := c.Param("id")
	job, ok := s.engine.Job(id)
	if !ok {
		sendError(c, http.StatusNotFound, engine.ErrJobNotFound.Error()+": "+id)
		return
	}
	if !job.Terminate(request.Reason) {
		sendError(c, http.StatusConflict, "job already finished")
		return
	}
	sendSuccess(c, map[string]any{"jobId": id, "state": string(job.State())})
}

// run starts job outside the request lifecycle. Failures are reported on
// the job's stream and record.
func (s *Server) run(job *engine.Job) {
	_ = job.Run(s.runCtx)
}
