package pipeline

import "sync"

// Configuration is a lazily assembled route table. The first Build runs the
// configure callback; later calls return the same table until Invalidate or
// Reconfigure. Independent configurations never share state.
type Configuration struct {
	mu        sync.Mutex
	configure func(*Builder)
	opts      []Option
	table     *Table
	builds    int
}

// New returns a configuration that assembles with configure and opts.
func New(configure func(*Builder), opts ...Option) *Configuration {
	return &Configuration{
		configure: configure,
		opts:      append([]Option(nil), opts...),
	}
}

// Build returns the memoized table, assembling it first if needed. Failed
// assemblies are not memoized.
func (c *Configuration) Build() (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table != nil {
		return c.table, nil
	}

	table, err := Assemble(c.configure, c.opts...)
	c.builds++
	if err != nil {
		return nil, err
	}
	c.table = table
	return table, nil
}

// Invalidate drops the memoized table so the next Build reassembles it.
func (c *Configuration) Invalidate() {
	c.mu.Lock()
	c.table = nil
	c.mu.Unlock()
}

// Reconfigure replaces the configure callback and drops the memoized table.
func (c *Configuration) Reconfigure(configure func(*Builder)) {
	c.mu.Lock()
	c.configure = configure
	c.table = nil
	c.mu.Unlock()
}

// Builds returns how many times the configure callback has run.
func (c *Configuration) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}
