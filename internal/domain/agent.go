package domain

// ParamSpec describes one parameter of a capability.
type ParamSpec struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required" yaml:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ReturnSpec describes one field of a capability's return value.
type ReturnSpec struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Capability describes one remotely-callable method of an agent.
// Pure metadata for discovery and introspection; never used for
// runtime type checking.
type Capability struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Params      []ParamSpec  `json:"params,omitempty" yaml:"params,omitempty"`
	Returns     []ReturnSpec `json:"returns,omitempty" yaml:"returns,omitempty"`
}

// AgentDescriptor is an agent's registry card: identity, reachable
// addresses and the ordered set of capabilities it serves.
type AgentDescriptor struct {
	Name            string       `json:"name" yaml:"name"`
	Description     string       `json:"description,omitempty" yaml:"description,omitempty"`
	InternalAddress string       `json:"internal_address" yaml:"internal_address"`
	ExternalAddress string       `json:"external_address,omitempty" yaml:"external_address,omitempty"`
	Capabilities    []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// Method returns the named capability, or nil when the agent does not
// declare it.
func (d *AgentDescriptor) Method(name string) *Capability {
	for i := range d.Capabilities {
		if d.Capabilities[i].Name == name {
			return &d.Capabilities[i]
		}
	}
	return nil
}

// Registry stores agent descriptors. Lookup misses are values (nil
// descriptor, nil error); a non-nil error always means the underlying
// store failed, so callers can tell "not registered" from "registry
// unavailable".
type Registry interface {
	Register(card AgentDescriptor) error
	GetAgent(name string) (*AgentDescriptor, error)
	ListAgents() ([]AgentDescriptor, error)
	GetMethodDetails(agentName, methodName string) (*Capability, error)
}
