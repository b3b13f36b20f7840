// Package roles names the roles a plugin can declare in PluginInfo.Roles.
// Callers locate a role through PluginResolver.ResolveByRole and then
// type-assert the plugin to the interface they need.
package roles

// Role name constants match the strings used in PluginInfo.Roles.
const (
	// RoleMonitoring plugins probe links and own the outage ledger.
	RoleMonitoring = "monitoring"
	// RoleNotification plugins deliver messages to people.
	RoleNotification = "notification"
	// RoleIntegration plugins mirror link state into other systems.
	RoleIntegration = "integration"
)
