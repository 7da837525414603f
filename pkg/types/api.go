package types

// StatusResponse is the payload for GET /status.
type StatusResponse struct {
	// Overall manager state: "ready" when at least one instance is ready.
	State string `json:"state"`
	// Snapshots of all registered instances.
	Instances []InstanceInfo `json:"instances"`
	// Number of instances currently in the ready state.
	ReadyCount int `json:"ready_count"`
	// Seconds since the manager was constructed.
	UptimeSec int64 `json:"uptime_sec"`
	// Path of the embedded redis-server binary in use.
	ServerBin string `json:"server_bin,omitempty"`
	// Path of the graph extension module, empty when not shipped.
	ModulePath string `json:"module_path,omitempty"`
}

// ProvisionRequest is the payload for POST /instances. An empty DBPath
// requests a throwaway instance on a generated temp path.
type ProvisionRequest struct {
	DBPath string `json:"db_path"`
	// Overrides are extra server config directives, keyed by directive
	// name. Directives the manager owns are rejected.
	Overrides map[string]string `json:"overrides,omitempty"`
}

// ReleaseRequest is the payload for POST /instances/release.
type ReleaseRequest struct {
	DBPath string `json:"db_path"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	Error string `json:"error"`
	// HTTP status code.
	Code int `json:"code"`
}
