// Package state models the provisioning engine's persisted state document and
// derives a typed inventory of managed resources from it.
package state

import "encoding/json"

// Document is the subset of the terraform state schema this service reads.
type Document struct {
	Resources []Resource        `json:"resources"`
	Outputs   map[string]Output `json:"outputs"`
}

// Resource is one managed resource with its recorded instances.
type Resource struct {
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	Instances []Instance `json:"instances"`
}

// Instance carries the attribute map recorded for one resource instance.
type Instance struct {
	Attributes map[string]any `json:"attributes"`
}

// Output is one named terraform output value.
type Output struct {
	Value any `json:"value"`
}

// Parse decodes a state document. The caller decides how strict to be about
// failures; an empty byte slice is not valid input here.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// OutputValues flattens the outputs map to name → value.
func (d *Document) OutputValues() map[string]any {
	values := make(map[string]any, len(d.Outputs))
	for name, out := range d.Outputs {
		values[name] = out.Value
	}
	return values
}
