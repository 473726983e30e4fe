// Package registry maps action kinds to the factories that build them.
package registry

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"slices"
	"sync"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
)

// Registry holds the action factories known to an engine.
type Registry struct {
	logger          *slog.Logger
	mu              sync.RWMutex
	actionFactories map[string]protocol.ActionFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log.With("module", "registry"),
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

// RegisterAction adds or replaces the factory for its kind.
func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actionFactories[factory.ID()] = factory
}

// HasAction reports whether kind is registered.
func (r *Registry) HasAction(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.actionFactories[kind]

	return ok
}

// Kinds returns the registered action kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.actionFactories))
	for kind := range r.actionFactories {
		kinds = append(kinds, kind)
	}

	slices.Sort(kinds)

	return kinds
}

// CreateAction builds an action of the given kind.
func (r *Registry) CreateAction(ctx context.Context, kind string, config map[string]any) (protocol.Action, error) {
	r.mu.RLock()
	factory, ok := r.actionFactories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownActionType, kind)
	}

	return factory.Create(ctx, config)
}

// Dispatch builds the action described by spec and runs it against execCtx.
// Errors from the handler come back wrapped in *ActionExecutionError.
func (r *Registry) Dispatch(ctx context.Context, spec models.ActionSpec, execCtx *models.ExecutionContext) (map[string]any, error) {
	action, err := r.CreateAction(ctx, spec.Type, spec.Params)
	if err != nil {
		if IsUnknownActionType(err) {
			return nil, err
		}

		return nil, &ActionExecutionError{Kind: spec.Type, Err: err}
	}

	logger := r.logger
	if execCtx != nil && execCtx.Logger != nil {
		logger = execCtx.Logger
	}

	logger = logger.With("action_type", spec.Type)

	result, err := action.Execute(ctx, execCtx, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Action failed", "error", err)

		return nil, &ActionExecutionError{Kind: spec.Type, Err: err}
	}

	if result == nil {
		result = map[string]any{}
	}

	return result, nil
}

// LoadActionPlugins opens every shared object under <pluginsPath>/actions and
// returns the ActionFactory each one exports as the "Action" symbol.
func (r *Registry) LoadActionPlugins(ctx context.Context, pluginsPath string) ([]protocol.ActionFactory, error) {
	if pluginsPath == "" {
		return nil, nil
	}

	rootPath := filepath.Join(pluginsPath, "actions")

	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		r.logger.DebugContext(ctx, "No action plugins directory", "path", rootPath)

		return nil, nil
	}

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "*.so")
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("path", rootPath)
	logger.InfoContext(ctx, "Loading action plugins", "count", len(pluginPathList))

	factories := make([]protocol.ActionFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return nil, fmt.Errorf("open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup("Action")
		if err != nil {
			return nil, fmt.Errorf("lookup Action in %s: %w", p, err)
		}

		factory, ok := symbol.(protocol.ActionFactory)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPlugin, p)
		}

		factories = append(factories, factory)

		logger.InfoContext(ctx, "Loaded action plugin", "plugin", p, "kind", factory.ID())
	}

	return factories, nil
}
