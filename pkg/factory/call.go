package factory

// CallOption attaches callbacks to a single Build or Create call. Callbacks
// run synchronously before the call returns.
type CallOption func(*callConfig)

type callConfig struct {
	onBuilt      func(Attrs)
	onBuiltErr   func(error, Attrs)
	onCreated    func(Record)
	onCreatedErr func(error, Record)
}

// OnBuilt is invoked with the evaluated attributes when Build succeeds.
func OnBuilt(fn func(Attrs)) CallOption {
	return func(c *callConfig) {
		c.onBuilt = fn
	}
}

// OnBuiltErr is invoked after every Build, with a nil error on success.
func OnBuiltErr(fn func(error, Attrs)) CallOption {
	return func(c *callConfig) {
		c.onBuiltErr = fn
	}
}

// OnCreated is invoked with the stored record when Create succeeds.
func OnCreated(fn func(Record)) CallOption {
	return func(c *callConfig) {
		c.onCreated = fn
	}
}

// OnCreatedErr is invoked after every Create, with a nil error on success.
func OnCreatedErr(fn func(error, Record)) CallOption {
	return func(c *callConfig) {
		c.onCreatedErr = fn
	}
}

func newCallConfig(opts []CallOption) *callConfig {
	c := &callConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *callConfig) deliverAttrs(attrs Attrs, err error) {
	if c.onBuiltErr != nil {
		c.onBuiltErr(err, attrs)
	}
	if err == nil && c.onBuilt != nil {
		c.onBuilt(attrs)
	}
}

func (c *callConfig) deliverRecord(rec Record, err error) {
	if c.onCreatedErr != nil {
		c.onCreatedErr(err, rec)
	}
	if err == nil && c.onCreated != nil {
		c.onCreated(rec)
	}
}
