package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"strings"
)

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
}

// RouteFilters narrows a route listing. Empty fields match everything.
type RouteFilters struct {
	Method string
	Path   string
}

// CollectRoutes walks the router and returns its routes sorted by path then method.
func CollectRoutes(router Router) []RouteInfo {
	var routes []RouteInfo
	_ = router.Walk(func(method, path string, handler http.Handler) error {
		routes = append(routes, RouteInfo{Method: method, Path: path, Handler: handlerName(handler)})
		return nil
	})
	slices.SortFunc(routes, func(a, b RouteInfo) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return routes
}

// FilterRoutes keeps the routes matching filters.
func FilterRoutes(routes []RouteInfo, filters RouteFilters) []RouteInfo {
	out := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		if filters.Method != "" && !strings.EqualFold(r.Method, filters.Method) {
			continue
		}
		if filters.Path != "" && !strings.Contains(r.Path, filters.Path) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// PrintRoutes writes routes as "json" or as an aligned table (any other format).
func PrintRoutes(w io.Writer, routes []RouteInfo, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	}

	fmt.Fprintf(w, "%-8s %-40s %s\n", "METHOD", "PATH", "HANDLER")
	for _, r := range routes {
		fmt.Fprintf(w, "%-8s %-40s %s\n", r.Method, r.Path, r.Handler)
	}
	fmt.Fprintf(w, "%d routes\n", len(routes))
	return nil
}

func handlerName(handler http.Handler) string {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", handler)
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return fmt.Sprintf("%T", handler)
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
