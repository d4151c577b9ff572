package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/grpc"

	"github.com/funvibe/dynbind/internal/config"
	"github.com/funvibe/dynbind/internal/trace"
	"github.com/funvibe/dynbind/pkg/binder"
	"github.com/funvibe/dynbind/pkg/interop/grpcinterop"
	"github.com/funvibe/dynbind/pkg/resolve"
)

// ProtoFlags selects the proto files to load. Flags override dynbind.yaml.
type ProtoFlags struct {
	Proto      []string `help:"Proto file to load (repeatable)." short:"p"`
	ImportPath []string `help:"Proto import path (repeatable)." short:"I" name:"import-path"`
}

func (f ProtoFlags) registry(cfg *config.Config) (*grpcinterop.Registry, error) {
	protos, importPaths := cfg.Grpc.Protos, cfg.Grpc.ImportPaths
	if len(f.Proto) > 0 {
		protos = f.Proto
	}
	if len(f.ImportPath) > 0 {
		importPaths = f.ImportPath
	}
	if len(protos) == 0 {
		return nil, fmt.Errorf("no proto files: pass --proto or set grpc.protos in %s", config.ConfigFileName)
	}
	reg := grpcinterop.NewRegistry(importPaths...)
	if err := reg.Load(protos...); err != nil {
		return nil, err
	}
	return reg, nil
}

type CallCmd struct {
	ProtoFlags `embed:""`

	Method  string   `arg:"" help:"Method as service/method, e.g. demo.Greeter/SayHello."`
	Fields  []string `arg:"" optional:"" help:"Request fields as name=value. Values are JSON when they parse as JSON, strings otherwise."`
	Target  string   `help:"Server address (default: grpc.target from config)." short:"t"`
	Request string   `help:"Whole request as a JSON object, instead of fields." short:"d"`
	Discard bool     `help:"Discard the response."`
}

func (c *CallCmd) Run(env *Env) error {
	cfg := env.Config
	reg, err := c.registry(cfg)
	if err != nil {
		return err
	}

	target := c.Target
	if target == "" {
		target = cfg.Grpc.Target
	}
	if target == "" {
		return fmt.Errorf("no target: pass --target or set grpc.target in %s", config.ConfigFileName)
	}
	conn, err := grpcinterop.Dial(target)
	if err != nil {
		return err
	}
	defer conn.Close()

	b, closeTrace, err := newBinder(env)
	if err != nil {
		return err
	}
	defer closeTrace()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Grpc.TimeoutDuration())
	defer cancel()

	result, err := c.call(ctx, env, b, reg, conn)
	if err != nil {
		fmt.Fprintln(os.Stderr, env.Style.Fail("✗ "+err.Error()))
		return fmt.Errorf("call %s failed", c.Method)
	}
	if c.Discard {
		fmt.Println(env.Style.Ok("✓ ok"))
		return nil
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func (c *CallCmd) call(ctx context.Context, env *Env, b *binder.Binder, reg *grpcinterop.Registry, conn grpc.ClientConnInterface) (any, error) {
	method, err := reg.Bind(conn, c.Method)
	if err != nil {
		return nil, err
	}

	infos, args, err := c.arguments()
	if err != nil {
		return nil, err
	}
	var flags binder.CallFlags
	if c.Discard {
		flags |= binder.ResultDiscarded
	}
	site, err := env.Sites.Get(flags, binder.Scope{}, infos)
	if err != nil {
		return nil, err
	}
	env.Logger.Debug("calling", slog.String("method", method.FullPath()), slog.String("site", site.Key()))
	return b.Invoke(ctx, site, method, args...)
}

// arguments turns the command line into argument infos (target first) and
// values.
func (c *CallCmd) arguments() ([]binder.ArgumentInfo, []any, error) {
	infos := []binder.ArgumentInfo{binder.Positional()}

	if c.Request != "" {
		if len(c.Fields) > 0 {
			return nil, nil, fmt.Errorf("--request and fields are mutually exclusive")
		}
		var req map[string]any
		if err := json.Unmarshal([]byte(c.Request), &req); err != nil {
			return nil, nil, fmt.Errorf("parsing --request: %w", err)
		}
		return append(infos, binder.Positional()), []any{req}, nil
	}

	args := make([]any, 0, len(c.Fields))
	for _, f := range c.Fields {
		name, raw, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("field %q: want name=value", f)
		}
		infos = append(infos, binder.MustArgument(binder.ArgNamed|binder.ArgConstant, name))
		args = append(args, parseValue(raw))
	}
	return infos, args, nil
}

// parseValue reads raw as JSON, falling back to the raw string so that
// name=Bob needs no quoting.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// newBinder wires the default engine, the gRPC fallback and, when enabled,
// the trace store. The returned func closes the store.
func newBinder(env *Env) (*binder.Binder, func(), error) {
	engine := resolve.New().WithLogger(env.Logger)
	b := binder.New(engine).
		WithInterop(grpcinterop.NewFallback().WithLogger(env.Logger)).
		WithLogger(env.Logger)

	if !env.Config.Trace.Enabled {
		return b, func() {}, nil
	}
	store, err := trace.Open(env.Config.Trace.Path)
	if err != nil {
		return nil, nil, err
	}
	b.WithObserver(store.WithLogger(env.Logger))
	return b, func() { store.Close() }, nil
}
