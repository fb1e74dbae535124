package sim

// Cloud is the root of the resource tree. Its children are data centers.
type Cloud struct {
	resource
	storage Handle
}

func (c *Cloud) Kind() ActorKind { return KindCloud }

func (c *Cloud) Accepts(k EventKind) bool { return k == EventResource }

func (c *Cloud) HandleEvent(e *Event) {
	c.handleResourceEvent(e)
}

// DataCenters returns the data center handles in insertion order.
func (c *Cloud) DataCenters() []Handle {
	return c.Children()
}

// VMStorage returns the bookkeeping table attached to the cloud.
func (c *Cloud) VMStorage() Handle {
	return c.storage
}

// DataCenter groups servers. Its children are servers.
type DataCenter struct {
	resource
}

func (d *DataCenter) Kind() ActorKind { return KindDataCenter }

func (d *DataCenter) Accepts(k EventKind) bool { return k == EventResource }

func (d *DataCenter) HandleEvent(e *Event) {
	d.handleResourceEvent(e)
}

// Servers returns the server handles in insertion order.
func (d *DataCenter) Servers() []Handle {
	return d.Children()
}
