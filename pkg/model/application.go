package model

import (
	"maps"
	"slices"
)

// RestartCondition defines when a stopped application is restarted.
type RestartCondition string

const (
	RestartNever     RestartCondition = "never"
	RestartAlways    RestartCondition = "always"
	RestartOnFailure RestartCondition = "on-failure"
)

// RestartPolicy defines the restart behavior of an application. The zero
// value means never restart. MaximumRetryCount is only meaningful with the
// on-failure condition; zero means unlimited retries.
type RestartPolicy struct {
	Condition         RestartCondition `json:"condition,omitempty"`
	MaximumRetryCount int              `json:"maximum_retry_count,omitempty"`
}

// NewRestartOnFailure returns an on-failure policy bounded by the given retry
// count. A non-positive count is a ValidationError; use
// RestartOnFailureUnlimited for an unbounded policy.
func NewRestartOnFailure(maximumRetryCount int) (RestartPolicy, error) {
	if maximumRetryCount <= 0 {
		return RestartPolicy{}, &ValidationError{
			Field:  "maximum_retry_count",
			Reason: "must be positive",
		}
	}
	return RestartPolicy{
		Condition:         RestartOnFailure,
		MaximumRetryCount: maximumRetryCount,
	}, nil
}

// RestartOnFailureUnlimited returns an on-failure policy with no retry bound.
func RestartOnFailureUnlimited() RestartPolicy {
	return RestartPolicy{Condition: RestartOnFailure}
}

// EffectiveCondition maps the zero value to RestartNever.
func (p RestartPolicy) EffectiveCondition() RestartCondition {
	if p.Condition == "" {
		return RestartNever
	}
	return p.Condition
}

// Equal reports structural equality, treating the zero value as never.
func (p RestartPolicy) Equal(other RestartPolicy) bool {
	return p.EffectiveCondition() == other.EffectiveCondition() &&
		p.MaximumRetryCount == other.MaximumRetryCount
}

// PortMapping exposes an application port on its node.
type PortMapping struct {
	Internal int `json:"internal"`
	External int `json:"external"`
}

// Link makes one application's port reachable from another under an alias.
type Link struct {
	Alias      string `json:"alias"`
	LocalPort  int    `json:"local_port"`
	RemotePort int    `json:"remote_port"`
}

// Application is a desired container workload. The name is the identity used
// across convergence diffs; everything else participates in value equality.
type Application struct {
	Name          string            `json:"name"`
	Image         DockerImage       `json:"image"`
	Ports         []PortMapping     `json:"ports,omitempty"`
	Volume        *AttachedVolume   `json:"volume,omitempty"`
	Links         []Link            `json:"links,omitempty"`
	Environment   map[string]string `json:"environment,omitempty"`
	MemoryLimit   int64             `json:"memory_limit,omitempty"` // bytes, 0 means unset
	CPUShares     int               `json:"cpu_shares,omitempty"`
	RestartPolicy RestartPolicy     `json:"restart_policy,omitzero"`
}

// Equal reports structural equality across all fields. Ports and links are
// compared order-insensitively.
func (a Application) Equal(other Application) bool {
	if a.Name != other.Name ||
		a.Image != other.Image ||
		a.MemoryLimit != other.MemoryLimit ||
		a.CPUShares != other.CPUShares ||
		!a.RestartPolicy.Equal(other.RestartPolicy) ||
		!maps.Equal(a.Environment, other.Environment) {
		return false
	}

	if (a.Volume == nil) != (other.Volume == nil) {
		return false
	}
	if a.Volume != nil && !a.Volume.Equal(*other.Volume) {
		return false
	}

	if !slices.Equal(sortedPorts(a.Ports), sortedPorts(other.Ports)) {
		return false
	}
	return slices.Equal(sortedLinks(a.Links), sortedLinks(other.Links))
}

func sortedPorts(ports []PortMapping) []PortMapping {
	out := slices.Clone(ports)
	slices.SortFunc(out, func(x, y PortMapping) int {
		if x.External != y.External {
			return x.External - y.External
		}
		return x.Internal - y.Internal
	})
	return out
}

func sortedLinks(links []Link) []Link {
	out := slices.Clone(links)
	slices.SortFunc(out, func(x, y Link) int {
		switch {
		case x.Alias < y.Alias:
			return -1
		case x.Alias > y.Alias:
			return 1
		default:
			return x.LocalPort - y.LocalPort
		}
	})
	return out
}
