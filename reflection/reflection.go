package reflection

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/framewire/framewire/registry"
	"github.com/framewire/framewire/transport"
)

// ServiceName is the conventional route prefix this service registers
// under, mirroring gRPC's own reflection service name.
const ServiceName = "grpc.reflection.v1alpha.ServerReflection"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HandlerRegistry is the narrow view of a registry.App that Reflection
// needs: the set of routes with a registered handler.
type HandlerRegistry interface {
	GetRegisteredMethods() []string
}

// ServiceInfo describes one service and its registered method names.
type ServiceInfo struct {
	Name    string   `json:"name"`
	Methods []string `json:"methods"`
}

// ListServicesResponse is the response body for ListServices.
type ListServicesResponse struct {
	Services []ServiceInfo `json:"services"`
}

// FileContainingSymbolRequest is the request body for FileContainingSymbol.
type FileContainingSymbolRequest struct {
	Symbol string `json:"symbol"`
}

// FileContainingSymbolResponse carries a base64-encoded
// FileDescriptorProto.
type FileContainingSymbolResponse struct {
	FileDescriptorProto string `json:"fileDescriptorProto"`
}

// Reflection answers introspection queries against a HandlerRegistry.
type Reflection struct {
	registry HandlerRegistry
}

// New builds a Reflection service backed by reg.
func New(reg HandlerRegistry) *Reflection {
	return &Reflection{registry: reg}
}

// ListServices groups every registered route by service name.
func (r *Reflection) ListServices() *ListServicesResponse {
	methods := r.registry.GetRegisteredMethods()

	serviceMap := make(map[string][]string)
	for _, method := range methods {
		if strings.HasPrefix(method, "/"+ServiceName+"/") {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(method, "/"), "/")
		if len(parts) != 2 {
			continue
		}
		serviceMap[parts[0]] = append(serviceMap[parts[0]], parts[1])
	}

	services := make([]ServiceInfo, 0, len(serviceMap))
	for name, methods := range serviceMap {
		sort.Strings(methods)
		services = append(services, ServiceInfo{Name: name, Methods: methods})
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	return &ListServicesResponse{Services: services}
}

// FileContainingSymbol resolves symbol (a fully qualified protobuf name) to
// the serialized, base64-encoded FileDescriptorProto of the file that
// declares it.
func (r *Reflection) FileContainingSymbol(symbol string) (*FileContainingSymbolResponse, error) {
	desc, err := protoregistry.GlobalFiles.FindDescriptorByName(protoreflect.FullName(symbol))
	if err != nil {
		return nil, err
	}

	fileDesc := desc.ParentFile()
	if fileDesc == nil {
		return nil, protoregistry.NotFound
	}

	fileDescProto := protodesc.ToFileDescriptorProto(fileDesc)
	data, err := proto.Marshal(fileDescProto)
	if err != nil {
		return nil, err
	}

	return &FileContainingSymbolResponse{
		FileDescriptorProto: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// ListServicesHandler adapts ListServices to a registry.Handler.
func (r *Reflection) ListServicesHandler() registry.Handler {
	return func(ctx context.Context, req any) (any, error) {
		return r.ListServices(), nil
	}
}

// FileContainingSymbolHandler adapts FileContainingSymbol to a
// registry.Handler.
func (r *Reflection) FileContainingSymbolHandler() registry.Handler {
	return func(ctx context.Context, req any) (any, error) {
		request, ok := req.(*FileContainingSymbolRequest)
		if !ok || request.Symbol == "" {
			return nil, &transport.CallError{Code: transport.StatusInvalidArgument, Message: "symbol is required"}
		}

		resp, err := r.FileContainingSymbol(request.Symbol)
		if err != nil {
			if err == protoregistry.NotFound {
				return nil, &transport.CallError{
					Code:    transport.StatusNotFound,
					Message: "symbol not found: " + request.Symbol,
				}
			}
			return nil, &transport.CallError{Code: transport.StatusInternal, Message: err.Error()}
		}
		return resp, nil
	}
}

// ListServicesMethod and FileContainingSymbolMethod below are the
// registry.MethodDesc factories wiring this service's marshal/unmarshal
// callbacks; register them under ServiceName with registry.NewService.

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalFileContainingSymbolRequest(data []byte) (any, error) {
	req := &FileContainingSymbolRequest{}
	if len(data) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListServicesMethod describes the ListServices method: it ignores its
// request body and marshals a *ListServicesResponse.
func ListServicesMethod() registry.MethodDesc {
	return registry.NewMethod("ListServices", marshalJSON, nil)
}

// FileContainingSymbolMethod describes the FileContainingSymbol method.
func FileContainingSymbolMethod() registry.MethodDesc {
	return registry.NewMethod("FileContainingSymbol", marshalJSON, unmarshalFileContainingSymbolRequest)
}

// Register builds the reflection ServiceDesc, adds it to app, and
// registers both handlers. Call it before app.AddService for any other
// service that also happens to be named ServiceName (it would collide).
func Register(app *registry.App, reg HandlerRegistry) error {
	r := New(reg)

	svc, err := registry.NewService(ServiceName, ListServicesMethod(), FileContainingSymbolMethod())
	if err != nil {
		return err
	}
	if err := app.AddService(svc); err != nil {
		return err
	}
	if err := app.Register("/"+ServiceName+"/ListServices", r.ListServicesHandler()); err != nil {
		return err
	}
	return app.Register("/"+ServiceName+"/FileContainingSymbol", r.FileContainingSymbolHandler())
}
