package xpath

import "fmt"

// Storage is a randomly addressable record store exposed as an instance.
// Records are addressed by ordinals in [0, NumRecords()).
type Storage interface {
	// Read returns the record with the given ordinal
	Read(ordinal int) (Node, error)

	// IDsForValue returns the ordinals whose field equals value
	IDsForValue(field, value string) ([]int, error)

	// NumRecords returns the number of records
	NumRecords() int

	// Iterate returns a forward-only iterator over all ordinals
	Iterate() Iterator
}

// Iterator walks record ordinals once
type Iterator interface {
	HasMore() bool
	NextID() int
}

// Instance is a named data tree available through instance('name')
type Instance struct {
	// static instances
	root Node

	// storage instances
	rootName  string
	childName string
	storage   Storage
	indexed   map[string]string // attribute name -> storage field
}

// StaticInstance exposes an in-memory tree whose root element is root
func StaticInstance(root Node) Instance {
	return Instance{root: root}
}

// StorageInstance exposes storage as <rootName><childName/>...</rootName>.
// indexed maps record attribute names to the storage fields IDsForValue accepts.
func StorageInstance(rootName, childName string, s Storage, indexed map[string]string) Instance {
	return Instance{
		rootName:  rootName,
		childName: childName,
		storage:   s,
		indexed:   indexed,
	}
}

// Resolver finds instances by name
type Resolver interface {
	Instance(name string) (Instance, error)
}

// Instances is a Resolver over a fixed set of instances
type Instances map[string]Instance

// Instance implements Resolver
func (m Instances) Instance(name string) (Instance, error) {
	inst, ok := m[name]
	if !ok {
		return Instance{}, fmt.Errorf("instance %q is not bound", name)
	}
	return inst, nil
}
