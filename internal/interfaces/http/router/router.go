// Package router assembles the gin engine: middleware chain, versioned API
// groups and the operational endpoints.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is one method and path of a DomainGroup, relative to its prefix.
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

// DomainGroup collects the routes of one API resource, e.g. /invoices.
// Routes are recorded first and mounted by Router.Setup.
type DomainGroup struct {
	name   string
	prefix string
	routes []Route
}

// NewDomainGroup creates an empty group mounted at prefix.
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, Route{Method: method, Path: path, Handlers: handlers})
	return dg
}

func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPut, path, handlers)
}

func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodDelete, path, handlers)
}

func (dg *DomainGroup) Name() string    { return dg.name }
func (dg *DomainGroup) Prefix() string  { return dg.prefix }
func (dg *DomainGroup) Routes() []Route { return dg.routes }

func (dg *DomainGroup) mount(api *gin.RouterGroup) {
	group := api.Group(dg.prefix)
	for _, r := range dg.routes {
		group.Handle(r.Method, r.Path, r.Handlers...)
	}
}

// Router mounts domain groups under /api/<version>.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	groups     []*DomainGroup
	middleware []gin.HandlerFunc
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix. Default "v1".
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware that runs for API routes only, not for /health or
// /metrics.
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

// Register queues groups for Setup.
func (r *Router) Register(groups ...*DomainGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Setup mounts every registered group on the engine.
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}
	for _, g := range r.groups {
		g.mount(api)
	}
}
