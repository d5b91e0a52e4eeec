// Package httpapi exposes tree editing over HTTP for the canvas renderer.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/entities"
)

// NewRouter builds the gin engine serving tree.
func NewRouter(tree *handlers.TreeHandler, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	api := &api{tree: tree, log: log}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g := router.Group("/api")
	{
		g.GET("/graph", api.graph)
		g.POST("/graph/reload", api.reload)

		g.GET("/people", api.listPeople)
		g.POST("/people", api.createPerson)
		g.GET("/people/:id", api.getPerson)
		g.PUT("/people/:id", api.savePerson)
		g.DELETE("/people/:id", api.deletePerson)
		g.POST("/people/:id/parents", api.addParent)
		g.POST("/people/:id/children", api.addChild)

		g.PUT("/nodes/:id/position", api.moveNode)

		g.POST("/connections", api.connect)
		g.POST("/reconnections", api.reconnect)
		g.POST("/edges/:id/toggle", api.toggle)
		g.POST("/drag-end", api.dragEnd)

		g.POST("/repair", api.repair)
	}

	return router
}

type api struct {
	tree *handlers.TreeHandler
	log  *zap.Logger
}

type reconnectRequest struct {
	OldEdge    entities.Edge       `json:"oldEdge"`
	Connection handlers.Connection `json:"connection"`
}

func (a *api) graph(c *gin.Context) {
	g, err := a.tree.Graph(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (a *api) reload(c *gin.Context) {
	g, err := a.tree.Reload(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (a *api) listPeople(c *gin.Context) {
	people, err := a.tree.People(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if people == nil {
		people = []entities.Person{}
	}
	c.JSON(http.StatusOK, people)
}

func (a *api) getPerson(c *gin.Context) {
	p, err := a.tree.Person(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *api) createPerson(c *gin.Context) {
	var p entities.Person
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.ID = ""
	saved, err := a.tree.SavePerson(c.Request.Context(), &p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (a *api) savePerson(c *gin.Context) {
	var p entities.Person
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.ID = c.Param("id")
	saved, err := a.tree.SavePerson(c.Request.Context(), &p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (a *api) deletePerson(c *gin.Context) {
	if err := a.tree.DeletePerson(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) addParent(c *gin.Context) {
	p, err := a.tree.AddParent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *api) addChild(c *gin.Context) {
	p, err := a.tree.AddChild(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *api) moveNode(c *gin.Context) {
	var pos entities.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if !a.tree.Canvas().MoveNode(id, pos) {
		writeError(c, entities.NewNotFound(id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "position": pos})
}

func (a *api) connect(c *gin.Context) {
	var conn handlers.Connection
	if err := c.ShouldBindJSON(&conn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	edge, err := a.tree.Connect(c.Request.Context(), conn)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

func (a *api) reconnect(c *gin.Context) {
	var req reconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	edge, err := a.tree.Reconnect(c.Request.Context(), req.OldEdge, req.Connection)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

func (a *api) toggle(c *gin.Context) {
	id := c.Param("id")
	status, err := a.tree.ToggleSpouseStatus(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func (a *api) dragEnd(c *gin.Context) {
	var drag handlers.DragEnd
	if err := c.ShouldBindJSON(&drag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := a.tree.CreateSpouseFromDrag(c.Request.Context(), drag)
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *api) repair(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.Query("dry_run"))
	report, err := a.tree.Repair(c.Request.Context(), dryRun)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch entities.TypeOf(err) {
	case entities.ErrorTypeNotFound:
		return http.StatusNotFound
	case entities.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case entities.ErrorTypePartialApplication:
		return http.StatusConflict
	case entities.ErrorTypeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error(), "type": entities.TypeOf(err)}

	switch status {
	case http.StatusUnprocessableEntity:
		body["rejected"] = true
	case http.StatusConflict:
		var partial *entities.PartialApplicationError
		if errors.As(err, &partial) {
			body["applied"] = partial.Applied
			body["failed"] = partial.Failed
		}
	case http.StatusInternalServerError:
		body["error"] = "internal error"
		body["type"] = nil
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

// cors allows the renderer to call the API from another origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if status >= http.StatusInternalServerError {
			log.Error("HTTP Request", fields...)
			return
		}
		log.Info("HTTP Request", fields...)
	}
}
