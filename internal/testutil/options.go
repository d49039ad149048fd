package testutil

// resourceData holds the history of a resource to be created.
type resourceData struct {
	name    string
	history [][]byte // history[0] is the create body, each later entry one update
}

// defaultResource returns a resource created with its own name as data.
func defaultResource(name string) resourceData {
	return resourceData{
		name:    name,
		history: [][]byte{[]byte(name)},
	}
}

// ResourceOption is a functional option for configuring resources.
type ResourceOption func(*resourceData)

// Data sets the data the resource is created with.
func Data(s string) ResourceOption {
	return func(r *resourceData) { r.history[0] = []byte(s) }
}

// Updates appends one update per value, so the resource ends at version
// 1 + len(values).
func Updates(values ...string) ResourceOption {
	return func(r *resourceData) {
		for _, v := range values {
			r.history = append(r.history, []byte(v))
		}
	}
}

// AtVersion pads the history with copies of the latest data until the
// resource reaches version.
func AtVersion(version int64) ResourceOption {
	return func(r *resourceData) {
		for int64(len(r.history)) < version {
			r.history = append(r.history, r.history[len(r.history)-1])
		}
	}
}
