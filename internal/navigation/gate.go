// Package navigation decides which screens a user may enter.
package navigation

import "github.com/xaenox/hopeconnect/internal/models"

type Route string

const (
	RouteOnboarding Route = "/onboarding"
	RouteDashboard  Route = "/"
	RouteChat       Route = "/chat"
	RouteCounselors Route = "/counselors"
	RouteResources  Route = "/resources"
	RouteEmergency  Route = "/emergency"
)

var known = map[Route]bool{
	RouteOnboarding: true,
	RouteDashboard:  true,
	RouteChat:       true,
	RouteCounselors: true,
	RouteResources:  true,
	RouteEmergency:  true,
}

// CanEnter reports whether the profile may see route. Onboarding and the
// emergency screen are always open; everything else needs a finished
// onboarding.
func CanEnter(route Route, profile models.UserProfile) bool {
	switch route {
	case RouteOnboarding, RouteEmergency:
		return true
	}
	return profile.IsOnboarded
}

// Resolve returns the route the user actually lands on. Unknown routes go
// to the dashboard and gated routes redirect to onboarding.
func Resolve(route Route, profile models.UserProfile) Route {
	if !known[route] {
		route = RouteDashboard
	}
	if !CanEnter(route, profile) {
		return RouteOnboarding
	}
	return route
}
