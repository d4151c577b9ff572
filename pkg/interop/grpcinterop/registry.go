// Package grpcinterop binds invoke call sites whose target is a remote gRPC
// method. Services are described by .proto files loaded at run time, so no
// generated code is needed: requests and responses are dynamic messages.
//
// Fallback is a binder.InteropFallback. It claims *Method targets and leaves
// every other target to the resolution engine:
//
//	reg := grpcinterop.NewRegistry("proto")
//	if err := reg.Load("greeter.proto"); err != nil { ... }
//	m, err := reg.Bind(conn, "helloworld.Greeter/SayHello")
//	b := binder.New(resolve.New()).WithInterop(grpcinterop.NewFallback())
//	reply, err := b.Invoke(ctx, site, m, "world") // site: [target, named "name"]
package grpcinterop

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
)

// Registry holds parsed proto file descriptors. It is safe for concurrent
// use.
type Registry struct {
	mu          sync.RWMutex
	files       map[string]*desc.FileDescriptor
	importPaths []string
}

// NewRegistry returns an empty registry resolving imports from
// importPaths. With no import paths the working directory is used.
func NewRegistry(importPaths ...string) *Registry {
	if len(importPaths) == 0 {
		importPaths = []string{"."}
	}
	return &Registry{
		files:       make(map[string]*desc.FileDescriptor),
		importPaths: importPaths,
	}
}

// Load parses proto files found on the import paths.
func (r *Registry) Load(files ...string) error {
	return r.load(protoparse.Parser{ImportPaths: r.importPaths}, files)
}

// LoadSource parses proto files from in-memory sources keyed by file name.
func (r *Registry) LoadSource(sources map[string]string, files ...string) error {
	return r.load(protoparse.Parser{Accessor: protoparse.FileContentsFromMap(sources)}, files)
}

func (r *Registry) load(parser protoparse.Parser, files []string) error {
	fds, err := parser.ParseFiles(files...)
	if err != nil {
		return fmt.Errorf("failed to parse proto: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fd := range fds {
		r.files[fd.GetName()] = fd
	}
	return nil
}

// Service finds a service by fully qualified or simple name.
func (r *Registry) Service(name string) (*desc.ServiceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, fname := range r.fileNames() {
		fd := r.files[fname]
		if sd := fd.FindService(name); sd != nil {
			return sd, nil
		}
		for _, sd := range fd.GetServices() {
			if sd.GetName() == name {
				return sd, nil
			}
		}
	}
	return nil, fmt.Errorf("service %q not found (did you load the proto?)", name)
}

// Method finds a method by path "package.Service/Method". A leading slash
// is accepted.
func (r *Registry) Method(path string) (*desc.MethodDescriptor, error) {
	service, method, ok := splitPath(path)
	if !ok {
		return nil, fmt.Errorf("invalid method path %q, expected 'package.Service/Method'", path)
	}
	sd, err := r.Service(service)
	if err != nil {
		return nil, fmt.Errorf("method %q: %w", path, err)
	}
	md := sd.FindMethodByName(method)
	if md == nil {
		return nil, fmt.Errorf("method %q not found in service %s", path, sd.GetFullyQualifiedName())
	}
	return md, nil
}

// Message finds a message type by fully qualified name.
func (r *Registry) Message(name string) (*desc.MessageDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, fname := range r.fileNames() {
		if md := r.files[fname].FindMessage(name); md != nil {
			return md, nil
		}
	}
	return nil, fmt.Errorf("message type %q not found", name)
}

// Services lists every loaded service, sorted by fully qualified name.
func (r *Registry) Services() []*desc.ServiceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*desc.ServiceDescriptor
	for _, name := range r.fileNames() {
		out = append(out, r.files[name].GetServices()...)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GetFullyQualifiedName() < out[j].GetFullyQualifiedName()
	})
	return out
}

// fileNames returns the loaded file names in a stable order. The caller
// holds the lock.
func (r *Registry) fileNames() []string {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// splitPath splits "package.Service/Method" at the last slash.
func splitPath(path string) (service, method string, ok bool) {
	path = strings.TrimPrefix(path, "/")
	i := strings.LastIndexByte(path, '/')
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}
