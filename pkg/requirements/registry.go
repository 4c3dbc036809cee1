package requirements

// ServiceType describes a kind of service the system knows how to
// provision.
type ServiceType struct {
	// Name is the service type name as written in project.yml.
	Name string

	// DefaultVariable is the environment variable used when the caller
	// does not pick one.
	DefaultVariable string

	// Description is a short human-readable description.
	Description string
}

// Registry holds the known service types.
type Registry struct {
	serviceTypes []ServiceType
}

// NewRegistry creates a registry with the built-in service types.
func NewRegistry() *Registry {
	return &Registry{
		serviceTypes: []ServiceType{
			{
				Name:            "redis",
				DefaultVariable: "REDIS_URL",
				Description:     "A redis key-value store",
			},
		},
	}
}

// ServiceTypes returns the known service types.
func (r *Registry) ServiceTypes() []ServiceType {
	return r.serviceTypes
}

// FindServiceType looks up a service type by name.
func (r *Registry) FindServiceType(name string) (ServiceType, bool) {
	for _, st := range r.serviceTypes {
		if st.Name == name {
			return st, true
		}
	}
	return ServiceType{}, false
}
