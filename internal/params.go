package internal

// Param is a single named capture extracted from the request path.
type Param struct {
	Name  string
	Value string
}

// Params is the ordered list of captures of a matched route.
// It is also a handler argument type.
type Params []Param

// Get returns the value of the named capture or an empty string.
func (p Params) Get(name string) string {
	v, _ := p.Lookup(name)
	return v
}

// Lookup returns the value of the named capture and whether it exists.
func (p Params) Lookup(name string) (string, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return "", false
}

// Map copies the captures into a map.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, param := range p {
		m[param.Name] = param.Value
	}
	return m
}

// FromContext fills p with the captures of the matched route.
func (p *Params) FromContext(c Context) error {
	*p = c.Params()
	return nil
}
