// Package registry implements the RPC application registry: the
// service/method model that maps routes to marshallers, unmarshallers, and
// handler dispatchers, and enforces completeness before serving.
//
// A registry is built from ServiceDesc values, each carrying MethodDesc
// entries, and exposes "/service/method" routes to an App. Handlers are
// attached to routes after construction via Register, and the registry can
// be Frozen once a transport starts serving it.
package registry
