package registry

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spiral/errors"

	"github.com/framewire/framewire/codec"
)

// Handler dispatches a single RPC call. The request and response shapes are
// whatever the route's Unmarshal/Marshal callbacks produce and accept.
type Handler func(ctx context.Context, req any) (any, error)

// MethodDesc describes one RPC method: its name within a service, and the
// codec callbacks used to translate wire bytes to and from the application
// type. Either callback may be nil, in which case the route passes bytes
// through untransformed.
type MethodDesc struct {
	Name      string
	Marshal   codec.Marshaler
	Unmarshal codec.Unmarshaler
}

// ServiceDesc describes a named group of methods. Method names within a
// service must be unique.
type ServiceDesc struct {
	Name    string
	Methods []MethodDesc
}

var nameValidate = validator.New()

type nameHolder struct {
	Name string `validate:"required,excludesall=/"`
}

func validateName(op errors.Op, kind, name string) error {
	if err := nameValidate.Struct(nameHolder{Name: name}); err != nil {
		return errors.E(op, errors.Str(kind+" name is invalid: "+name))
	}
	return nil
}

// NewMethod records a method name alongside its optional codec callbacks.
func NewMethod(name string, marshal codec.Marshaler, unmarshal codec.Unmarshaler) MethodDesc {
	return MethodDesc{Name: name, Marshal: marshal, Unmarshal: unmarshal}
}

// NewService builds an immutable service descriptor. It rejects an invalid
// service name, an invalid method name, or a duplicate method name within
// the service.
func NewService(name string, methods ...MethodDesc) (ServiceDesc, error) {
	const op = errors.Op("registry: new service")

	if err := validateName(op, "service", name); err != nil {
		return ServiceDesc{}, err
	}

	seen := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		if err := validateName(op, "method", m.Name); err != nil {
			return ServiceDesc{}, err
		}
		if _, ok := seen[m.Name]; ok {
			return ServiceDesc{}, errors.E(op, errors.Str("duplicate method name: "+m.Name))
		}
		seen[m.Name] = struct{}{}
	}

	return ServiceDesc{Name: name, Methods: methods}, nil
}

type routeEntry struct {
	marshal   codec.Marshaler
	unmarshal codec.Unmarshaler
	handler   Handler
}

// App is the RPC application registry: it maps "/service/method" routes to
// their codec callbacks and handlers, and tracks completeness. The zero
// value is not usable; construct one with NewApp.
type App struct {
	mu         sync.RWMutex
	services   map[string]struct{}
	routes     map[string]*routeEntry
	routeOrder []string
	frozen     bool
}

// NewApp constructs a registry, pre-loading any services passed at
// construction time. It fails if any of the given services collide, either
// by service name or by route.
func NewApp(services ...ServiceDesc) (*App, error) {
	app := &App{
		services: make(map[string]struct{}),
		routes:   make(map[string]*routeEntry),
	}
	for _, svc := range services {
		if err := app.AddService(svc); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func routeFor(serviceName, methodName string) string {
	return "/" + serviceName + "/" + methodName
}

// AddService registers every route of svc. It fails if svc's name is
// already present, if the app is frozen, or if a route it would add
// already exists.
func (a *App) AddService(svc ServiceDesc) error {
	const op = errors.Op("registry: add service")

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return errors.E(op, errors.Str("registry is frozen"))
	}
	if _, ok := a.services[svc.Name]; ok {
		return errors.E(op, errors.Str("service already registered: "+svc.Name))
	}

	routes := make([]string, 0, len(svc.Methods))
	for _, m := range svc.Methods {
		route := routeFor(svc.Name, m.Name)
		if _, ok := a.routes[route]; ok {
			return errors.E(op, errors.Str("route already registered: "+route))
		}
		routes = append(routes, route)
	}

	a.services[svc.Name] = struct{}{}
	for i, m := range svc.Methods {
		a.routes[routes[i]] = &routeEntry{marshal: m.Marshal, unmarshal: m.Unmarshal}
		a.routeOrder = append(a.routeOrder, routes[i])
	}
	return nil
}

// Register sets the handler for an existing route. It fails if the route is
// unknown, already has a handler, or the app is frozen.
func (a *App) Register(route string, handler Handler) error {
	const op = errors.Op("registry: register")

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return errors.E(op, errors.Str("registry is frozen"))
	}
	entry, ok := a.routes[route]
	if !ok {
		return errors.E(op, errors.Str("unknown route: "+route))
	}
	if entry.handler != nil {
		return errors.E(op, errors.Str("route already has a handler: "+route))
	}
	entry.handler = handler
	return nil
}

// HasRoute reports whether route is known and has a registered handler.
func (a *App) HasRoute(route string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entry, ok := a.routes[route]
	return ok && entry.handler != nil
}

// MissingRoutes returns every known route with no handler, in
// service-insertion order followed by method-insertion order.
func (a *App) MissingRoutes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var missing []string
	for _, route := range a.routeOrder {
		if a.routes[route].handler == nil {
			missing = append(missing, route)
		}
	}
	return missing
}

// Marshaller returns the route's marshal callback. ok is false only when
// the route itself is unknown; a known route with no configured marshaller
// returns (nil, true).
func (a *App) Marshaller(route string) (codec.Marshaler, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entry, ok := a.routes[route]
	if !ok {
		return nil, false
	}
	return entry.marshal, true
}

// Unmarshaller returns the route's unmarshal callback. ok is false only
// when the route itself is unknown; a known route with no configured
// unmarshaller returns (nil, true).
func (a *App) Unmarshaller(route string) (codec.Unmarshaler, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entry, ok := a.routes[route]
	if !ok {
		return nil, false
	}
	return entry.unmarshal, true
}

// IsComplete reports whether every known route has a registered handler.
func (a *App) IsComplete() bool {
	return len(a.MissingRoutes()) == 0
}

// Freeze marks the registry read-only. Further AddService or Register calls
// return an error instead of mutating it. Freeze is idempotent.
func (a *App) Freeze() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
}

// Handler returns the handler registered for route, if any.
func (a *App) Handler(route string) (Handler, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entry, ok := a.routes[route]
	if !ok || entry.handler == nil {
		return nil, false
	}
	return entry.handler, true
}

// GetRegisteredMethods returns every route with a registered handler, in
// service-insertion order followed by method-insertion order. This is the
// lookup the reflection service uses, and satisfies a narrow
// HandlerRegistry interface kept for compatibility with the reflection
// service's original shape.
func (a *App) GetRegisteredMethods() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var methods []string
	for _, route := range a.routeOrder {
		if a.routes[route].handler != nil {
			methods = append(methods, route)
		}
	}
	return methods
}
