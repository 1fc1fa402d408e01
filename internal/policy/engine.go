package policy

import (
	"strings"
	"sync"

	"github.com/workshop/vehicleapi/internal/config"
)

// Rule requires Permission for requests matching Method and Pattern.
// Pattern segments written as {name} match any single non-empty segment; a
// trailing /* matches everything below the prefix.
type Rule struct {
	ID         string `json:"id"`
	Method     string `json:"method,omitempty"` // "*" or empty matches any method
	Pattern    string `json:"pattern"`
	Permission string `json:"permission"`
}

// Decision is the outcome of evaluating a request. An empty Permission means
// any authenticated principal may proceed.
type Decision struct {
	RuleID     string
	Permission string
}

// DefaultDecision applies when no rule matches.
var DefaultDecision = Decision{RuleID: "default"}

// Engine evaluates requests against an ordered rule list. First match wins.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
}

func NewEngine(rules ...Rule) *Engine {
	e := &Engine{}
	e.LoadPolicies(rules)
	return e
}

// LoadPolicies replaces the current set
func (e *Engine) LoadPolicies(newRules []Rule) {
	rules := make([]Rule, len(newRules))
	copy(rules, newRules)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
}

func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

func (e *Engine) Evaluate(method, path string) Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for i := range e.rules {
		r := &e.rules[i]
		if match(r, method, path) {
			return Decision{RuleID: r.ID, Permission: r.Permission}
		}
	}
	return DefaultDecision
}

func match(r *Rule, method, path string) bool {
	if r.Method != "" && r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return matchPath(r.Pattern, path)
}

func matchPath(pattern, path string) bool {
	pattern = trimSlash(pattern)
	path = trimSlash(path)

	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}

	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}

// VehicleRules is the permission table of the vehicle API. deletePermission
// selects which permission guards DELETE.
func VehicleRules(deletePermission string) []Rule {
	if deletePermission == "" {
		deletePermission = config.PermissionDelete
	}
	return []Rule{
		{ID: "vehicle-create", Method: "POST", Pattern: "/api/v1/vehicle", Permission: config.PermissionWrite},
		{ID: "vehicle-update", Method: "PATCH", Pattern: "/api/v1/vehicle/{id}", Permission: config.PermissionWrite},
		{ID: "vehicle-list", Method: "GET", Pattern: "/api/v1/vehicle/all", Permission: config.PermissionRead},
		{ID: "vehicle-search", Method: "GET", Pattern: "/api/v1/vehicle", Permission: config.PermissionRead},
		{ID: "vehicle-delete", Method: "DELETE", Pattern: "/api/v1/vehicle", Permission: deletePermission},
		{ID: "admin", Method: "*", Pattern: "/api/v1/admin/*", Permission: config.PermissionAdmin},
	}
}
