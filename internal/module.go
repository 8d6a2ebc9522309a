package internal

// Module bundles controllers with the modules they depend on.
type Module struct {
	name        string
	imports     []*Module
	controllers []*Controller
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// Imports declares modules mounted before this one.
func Imports(mods ...*Module) ModuleOption {
	return func(m *Module) {
		for _, dep := range mods {
			if dep != nil {
				m.imports = append(m.imports, dep)
			}
		}
	}
}

// Controllers declares the controllers of the module.
func Controllers(ctls ...*Controller) ModuleOption {
	return func(m *Module) {
		for _, c := range ctls {
			if c != nil {
				m.controllers = append(m.controllers, c)
			}
		}
	}
}

// NewModule creates a module.
//
// Example:
//
//	shared := conduit.NewModule("shared", conduit.Controllers(healthCtl))
//	api := conduit.NewModule("api",
//	    conduit.Imports(shared),
//	    conduit.Controllers(users, orders),
//	)
func NewModule(name string, opts ...ModuleOption) *Module {
	m := &Module{name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return m.name
}

// Import mounts m: its imports first, depth-first in declaration order,
// then its own controllers. A module reachable several times is mounted once.
func (a *App) Import(m *Module) {
	if m == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.importModule(m)
}

func (a *App) importModule(m *Module) {
	if _, seen := a.imported[m]; seen {
		return
	}
	a.imported[m] = struct{}{}
	for _, dep := range m.imports {
		a.importModule(dep)
	}
	a.mount(m.controllers...)
}

// NewFromModule creates an App from a root module and options.
// Options are applied after the module tree is mounted.
func NewFromModule(root *Module, opts ...Option) *App {
	return New(append([]Option{WithModule(root)}, opts...)...)
}
