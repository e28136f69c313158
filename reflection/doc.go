// Package reflection implements a registry-backed introspection RPC:
// listing every registered route grouped by service, and resolving a
// protobuf symbol name to its serialized FileDescriptorProto.
//
// It does not define its own wire format; its two methods are ordinary
// registry.Handler values meant to be registered into the same App they
// introspect, typically under the conventional
// "grpc.reflection.v1alpha.ServerReflection" service name.
package reflection
