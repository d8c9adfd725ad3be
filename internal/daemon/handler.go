package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/alverad/inout/internal/audit"
	"github.com/alverad/inout/internal/catalog"
	"github.com/alverad/inout/pkg/inout"
	"github.com/alverad/inout/pkg/protocol"
	"github.com/alverad/inout/pkg/version"
)

// Handler dispatches the daemon's RPC methods. Only constant bindings cross
// the socket; functions cannot, so remote registrations go through the same
// wire-safe type table the catalog uses.
type Handler struct {
	startTime time.Time
	audit     *audit.Store    // nil when auditing is disabled
	loader    *catalog.Loader // nil when no catalog dirs are configured

	// OnShutdown is invoked by the shutdown method; set by the daemon.
	OnShutdown func()

	mu     sync.Mutex
	tokens map[string]inout.Disposer
}

func NewHandler(auditStore *audit.Store, loader *catalog.Loader) *Handler {
	return &Handler{
		startTime: time.Now(),
		audit:     auditStore,
		loader:    loader,
		tokens:    make(map[string]inout.Disposer),
	}
}

func (h *Handler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	log.Debug("rpc request", "method", req.Method)

	switch req.Method {
	case "health":
		return h.health(), nil
	case "store.list":
		return h.listStores(), nil
	case "store.create":
		return h.createStore(req)
	case "store.destroy":
		return h.destroyStore(req)
	case "binding.register":
		return h.registerBindings(req)
	case "binding.dispose":
		return h.disposeBindings(req)
	case "provide":
		return h.provide(req)
	case "process":
		return h.process(req)
	case "providers.list":
		return h.listProviders(req)
	case "processors.list":
		return h.listProcessors(req)
	case "catalog.reload":
		return h.reloadCatalog()
	case "audit.recent":
		return h.auditRecent(req)
	case "audit.stats":
		return h.auditStats()
	case "shutdown":
		if h.OnShutdown != nil {
			go h.OnShutdown()
		}
		return map[string]bool{"ok": true}, nil
	}

	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("unknown method %q", req.Method),
	}
}

func (h *Handler) health() *protocol.HealthResponse {
	bindings := 0
	names := inout.ListStores()
	for _, name := range names {
		if s, err := inout.GetStore(name); err == nil {
			bindings += s.CountProviders()
		}
	}

	return &protocol.HealthResponse{
		Status:   "ok",
		Version:  version.Version,
		Uptime:   int64(time.Since(h.startTime).Seconds()),
		Stores:   len(names),
		Bindings: bindings,
	}
}

func (h *Handler) listStores() *protocol.ListStoresResponse {
	resp := &protocol.ListStoresResponse{}
	for _, name := range inout.ListStores() {
		s, err := inout.GetStore(name)
		if err != nil {
			continue
		}
		resp.Stores = append(resp.Stores, protocol.StoreInfo{
			Name:       name,
			Providers:  s.CountProviders(),
			Processors: s.CountProcessors(),
		})
	}
	return resp
}

func (h *Handler) createStore(req *jsonrpc2.Request) (any, error) {
	var params protocol.StoreRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	if _, err := inout.NewStore(params.Name); err != nil {
		return nil, invalidParams(err)
	}
	return protocol.StoreInfo{Name: params.Name}, nil
}

func (h *Handler) destroyStore(req *jsonrpc2.Request) (any, error) {
	var params protocol.StoreRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	if err := inout.DestroyStore(params.Name); err != nil {
		return nil, invalidParams(err)
	}
	return map[string]bool{"destroyed": true}, nil
}

func (h *Handler) registerBindings(req *jsonrpc2.Request) (any, error) {
	var params protocol.RegisterRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Bindings) == 0 {
		return nil, invalidParams(fmt.Errorf("no bindings given"))
	}

	// Bindings may target different stores, so registrations are grouped
	// per store and the disposers combined under one token.
	var disposers []inout.Disposer
	undo := func() {
		for i := len(disposers) - 1; i >= 0; i-- {
			disposers[i]()
		}
	}

	for _, b := range params.Bindings {
		store, err := storeFor(b.Store)
		if err != nil {
			undo()
			return nil, err
		}

		hint, value, err := catalog.ParseBinding(catalog.BindingSpec{
			Type:     b.Type,
			Value:    b.Value,
			Weight:   b.Weight,
			Optional: b.Optional,
		})
		if err != nil {
			undo()
			return nil, invalidParams(err)
		}

		v := value
		d, err := store.RegisterProvider(hint, func() (any, error) { return v, nil },
			inout.WithWeight(b.Weight))
		if err != nil {
			undo()
			return nil, invalidParams(err)
		}
		disposers = append(disposers, d)
	}

	token := uuid.NewString()
	h.mu.Lock()
	h.tokens[token] = inout.CombineDisposers(disposers...)
	h.mu.Unlock()

	log.Info("bindings registered", "count", len(params.Bindings), "token", token)

	return &protocol.RegisterResponse{
		Registered: len(params.Bindings),
		Token:      token,
	}, nil
}

func (h *Handler) disposeBindings(req *jsonrpc2.Request) (any, error) {
	var params protocol.DisposeRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	h.mu.Lock()
	d, ok := h.tokens[params.Token]
	delete(h.tokens, params.Token)
	h.mu.Unlock()

	if ok {
		d()
	}
	return &protocol.DisposeResponse{Disposed: ok}, nil
}

func (h *Handler) provide(req *jsonrpc2.Request) (any, error) {
	var params protocol.ProvideRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	store, err := storeFor(params.Store)
	if err != nil {
		return nil, err
	}

	hint, err := hintFor(params.Type, params.Optional)
	if err != nil {
		return nil, err
	}

	value, err := store.Provide(hint)
	if err != nil {
		return &protocol.ProvideResponse{Found: false}, nil
	}
	return &protocol.ProvideResponse{Found: true, Value: value}, nil
}

func (h *Handler) process(req *jsonrpc2.Request) (any, error) {
	var params protocol.ProcessRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	store, err := storeFor(params.Store)
	if err != nil {
		return nil, err
	}

	hint, value, perr := catalog.ParseBinding(catalog.BindingSpec{
		Type:  params.Type,
		Value: params.Value,
	})
	if perr != nil {
		return nil, invalidParams(perr)
	}

	matched := len(store.ProcessorsFor(hint)) > 0

	opts := []inout.ProcessOption{inout.ProcessWithHint(hint), inout.ProcessRaise()}
	if params.FirstOnly {
		opts = append(opts, inout.ProcessFirstOnly())
	}

	if err := store.Process(value, opts...); err != nil {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInternalError,
			Message: err.Error(),
		}
	}
	return &protocol.ProcessResponse{Processed: matched}, nil
}

func (h *Handler) listProviders(req *jsonrpc2.Request) (any, error) {
	var params protocol.StoreRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	store, err := storeFor(params.Name)
	if err != nil {
		return nil, err
	}
	return registrationList(store.Name(), store.ProviderInfo()), nil
}

func (h *Handler) listProcessors(req *jsonrpc2.Request) (any, error) {
	var params protocol.StoreRequest
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}

	store, err := storeFor(params.Name)
	if err != nil {
		return nil, err
	}
	return registrationList(store.Name(), store.ProcessorInfo()), nil
}

func (h *Handler) reloadCatalog() (any, error) {
	if h.loader == nil {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: "no catalog configured",
		}
	}
	if err := h.loader.Reload(); err != nil {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInternalError,
			Message: err.Error(),
		}
	}
	return map[string]bool{"reloaded": true}, nil
}

func (h *Handler) auditRecent(req *jsonrpc2.Request) (any, error) {
	if h.audit == nil {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: "auditing disabled",
		}
	}

	params := protocol.AuditRecentRequest{Limit: 50}
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
	}

	events, err := h.audit.Recent(params.Limit)
	if err != nil {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInternalError,
			Message: err.Error(),
		}
	}

	resp := &protocol.AuditRecentResponse{}
	for _, ev := range events {
		resp.Events = append(resp.Events, protocol.AuditEvent{
			ID:        ev.ID,
			Store:     ev.Store,
			Kind:      ev.Kind,
			Hint:      ev.Hint,
			Weight:    ev.Weight,
			OK:        ev.OK,
			Error:     ev.Error,
			CreatedAt: ev.CreatedAt,
		})
	}
	return resp, nil
}

func (h *Handler) auditStats() (any, error) {
	if h.audit == nil {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: "auditing disabled",
		}
	}

	stats, err := h.audit.GetStats()
	if err != nil {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInternalError,
			Message: err.Error(),
		}
	}

	return &protocol.AuditStatsResponse{
		Total:   stats.Total,
		Misses:  stats.Misses,
		ByKind:  stats.ByKind,
		ByStore: stats.ByStore,
	}, nil
}

// DisposeAll drops every token the handler still holds. Called at shutdown
// so remote registrations do not outlive their clients' reach.
func (h *Handler) DisposeAll() {
	h.mu.Lock()
	tokens := h.tokens
	h.tokens = make(map[string]inout.Disposer)
	h.mu.Unlock()

	for _, d := range tokens {
		d()
	}
}

func registrationList(store string, infos []inout.RegistrationInfo) *protocol.RegistrationList {
	list := &protocol.RegistrationList{Store: store}
	for _, info := range infos {
		list.Registration = append(list.Registration, protocol.Slot{
			Hint:     info.Hint,
			Optional: info.Optional,
			Weight:   info.Weight,
		})
	}
	return list
}

func storeFor(name string) (*inout.Store, error) {
	s, err := inout.GetStore(name)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s, nil
}

func hintFor(typeName string, optional bool) (inout.Hint, error) {
	t, ok := catalog.TypeByName(typeName)
	if !ok {
		return inout.Hint{}, invalidParams(fmt.Errorf("unsupported type %q", typeName))
	}
	hint := inout.HintFor(t)
	if optional {
		hint = hint.AsOptional()
	}
	return hint, nil
}

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return invalidParams(fmt.Errorf("missing params"))
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return invalidParams(err)
	}
	return nil
}

func invalidParams(err error) error {
	return &jsonrpc2.Error{
		Code:    jsonrpc2.CodeInvalidParams,
		Message: err.Error(),
	}
}
