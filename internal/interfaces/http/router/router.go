package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/retailpulse/backend/internal/interfaces/http/handler"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one area under a prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

// PATCH registers a PATCH route
func (dg *DomainGroup) PATCH(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPatch, path, handlers)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodDelete, path, handlers)
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.middleware...)
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Handlers bundles everything the API serves.
type Handlers struct {
	Inventory    *handler.InventoryHandler
	Notification *handler.NotificationHandler
	Realtime     *handler.RealtimeHandler
	Webhook      *handler.WebhookHandler
	Health       *handler.HealthHandler
}

// Setup wires every route onto engine. auth runs before every
// authenticated route.
func Setup(engine *gin.Engine, h Handlers, auth ...gin.HandlerFunc) *Router {
	engine.GET("/health", h.Health.Health)
	engine.POST("/sheet-change-webhook", h.Webhook.SheetChange)
	engine.POST("/api/sheet-update", h.Webhook.SheetUpdate)

	r := NewRouter(engine)

	inventory := NewDomainGroup("inventory", "/inventory")
	inventory.POST("/sheet-change-webhook", h.Webhook.SheetChange)
	r.Register(inventory)

	secured := NewDomainGroup("inventory", "/inventory").Use(auth...).
		GET("/insights", h.Inventory.GetInsights).
		GET("/summary", h.Inventory.GetSummary).
		GET("/updates", h.Inventory.GetUpdates).
		POST("/connect", h.Inventory.Connect).
		DELETE("/connect", h.Inventory.Disconnect).
		GET("/string", h.Inventory.GetLinked).
		GET("/disconnect", h.Inventory.Disconnect).
		POST("/update-stock", h.Inventory.UpdateStock)
	r.Register(secured)

	notify := NewDomainGroup("notify", "/notify").Use(auth...).
		GET("", h.Notification.List).
		PATCH("/:id/read", h.Notification.MarkRead)
	r.Register(notify)

	rt := NewDomainGroup("realtime", "/realtime").Use(auth...).
		GET("/stream", h.Realtime.Stream)
	r.Register(rt)

	r.Setup()
	return r
}
