package server

import (
	"net/http"
)

// BasicRouter serves the sign-in callback routes behind a middleware stack.
//
// Routes are [http.ServeMux] patterns and may carry a method ("GET /callback"), in which
// case other methods get 405. Anything unrouted, like the browser's favicon request, gets 404.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates an empty [BasicRouter].
func NewBasicRouter() *BasicRouter {
	r := &BasicRouter{mux: http.NewServeMux()}
	r.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not the sign-in callback", http.StatusNotFound)
	})
	return r
}

// Use appends middleware. Register handlers afterwards: only middleware added before
// [BasicRouter.Handler] wraps them.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handler registers handler under every pattern from [Handler.Routes].
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.apply(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements [http.Handler].
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// apply wraps handler so the first middleware added runs first.
func (r *BasicRouter) apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}
	return wrapped
}
