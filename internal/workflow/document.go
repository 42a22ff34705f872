package workflow

import (
	"encoding/json"
	"fmt"
)

// Top-level and node keys with dedicated fields. Everything else lives in
// the Extra bag and round-trips untouched.
const (
	keyID         = "id"
	keyName       = "name"
	keyNodes      = "nodes"
	keyUpdatedAt  = "updatedAt"
	keyCreatedAt  = "createdAt"
	keyVersionID  = "versionId"
	keyType       = "type"
	keyParameters = "parameters"
	keyPosition   = "position"
)

// Summary is a lightweight listing entry returned by the remote server.
// It is never persisted.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Node is one step of a workflow definition.
type Node struct {
	ID         string
	Name       string
	Type       string
	Parameters Object
	// Position is layout-only and excluded from fingerprints.
	Position Value
	Extra    Object
}

// Document is a full workflow definition as returned by the detail
// endpoint.
type Document struct {
	ID        string
	Name      string
	Nodes     []Node
	HasNodes  bool
	UpdatedAt string
	CreatedAt string
	VersionID string
	Extra     Object
}

// Clone returns an independent deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Extra = d.Extra.Clone()
	if d.Nodes != nil {
		out.Nodes = make([]Node, len(d.Nodes))
		for i, n := range d.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	return &out
}

// Clone returns an independent deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Parameters = n.Parameters.Clone()
	out.Extra = n.Extra.Clone()
	if n.Position != nil {
		out.Position = Clone(n.Position)
	}
	return out
}

// DocumentFromObject splits a decoded JSON object into a Document. Known
// keys with an unexpected shape stay in Extra so nothing is lost.
func DocumentFromObject(obj Object) *Document {
	d := &Document{Extra: make(Object, len(obj))}
	for k, v := range obj {
		switch k {
		case keyID:
			if s, ok := scalarText(v); ok {
				d.ID = s
				continue
			}
		case keyName:
			if s, ok := v.(String); ok {
				d.Name = string(s)
				continue
			}
		case keyUpdatedAt:
			if s, ok := v.(String); ok {
				d.UpdatedAt = string(s)
				continue
			}
		case keyCreatedAt:
			if s, ok := v.(String); ok {
				d.CreatedAt = string(s)
				continue
			}
		case keyVersionID:
			if s, ok := v.(String); ok {
				d.VersionID = string(s)
				continue
			}
		case keyNodes:
			if arr, ok := v.(Array); ok && nodesShape(arr) {
				d.HasNodes = true
				d.Nodes = make([]Node, len(arr))
				for i, elem := range arr {
					d.Nodes[i] = nodeFromObject(elem.(Object))
				}
				continue
			}
		}
		d.Extra[k] = Clone(v)
	}
	return d
}

func nodesShape(arr Array) bool {
	for _, elem := range arr {
		if _, ok := elem.(Object); !ok {
			return false
		}
	}
	return true
}

func nodeFromObject(obj Object) Node {
	n := Node{Extra: make(Object)}
	for k, v := range obj {
		switch k {
		case keyID:
			if s, ok := scalarText(v); ok {
				n.ID = s
				continue
			}
		case keyName:
			if s, ok := v.(String); ok {
				n.Name = string(s)
				continue
			}
		case keyType:
			if s, ok := v.(String); ok {
				n.Type = string(s)
				continue
			}
		case keyParameters:
			if p, ok := v.(Object); ok {
				n.Parameters = p.Clone()
				continue
			}
		case keyPosition:
			n.Position = Clone(v)
			continue
		}
		n.Extra[k] = Clone(v)
	}
	return n
}

func scalarText(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Number:
		return string(val), true
	}
	return "", false
}

// Object reassembles the document into a single JSON object. Empty string
// fields are omitted so absent keys stay absent.
func (d *Document) Object() Object {
	obj := d.Extra.Clone()
	if obj == nil {
		obj = make(Object)
	}
	setString(obj, keyID, d.ID)
	setString(obj, keyName, d.Name)
	setString(obj, keyUpdatedAt, d.UpdatedAt)
	setString(obj, keyCreatedAt, d.CreatedAt)
	setString(obj, keyVersionID, d.VersionID)
	if d.HasNodes || len(d.Nodes) > 0 {
		nodes := make(Array, len(d.Nodes))
		for i, n := range d.Nodes {
			nodes[i] = n.Object()
		}
		obj[keyNodes] = nodes
	}
	return obj
}

// Object reassembles the node into a single JSON object.
func (n Node) Object() Object {
	obj := n.Extra.Clone()
	if obj == nil {
		obj = make(Object)
	}
	setString(obj, keyID, n.ID)
	setString(obj, keyName, n.Name)
	setString(obj, keyType, n.Type)
	if n.Parameters != nil {
		obj[keyParameters] = n.Parameters.Clone()
	}
	if n.Position != nil {
		obj[keyPosition] = Clone(n.Position)
	}
	return obj
}

func setString(obj Object, key, val string) {
	if val != "" {
		obj[key] = String(val)
	}
}

// UnmarshalJSON accepts numeric ids as well as strings; older servers
// emit numeric workflow ids.
func (s *Summary) UnmarshalJSON(data []byte) error {
	v, err := DecodeValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("workflow summary: expected JSON object, got %T", v)
	}
	*s = Summary{}
	s.ID, _ = scalarText(obj[keyID])
	if name, ok := obj[keyName].(String); ok {
		s.Name = string(name)
	}
	if active, ok := obj["active"].(Bool); ok {
		s.Active = bool(active)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Document.
func (d *Document) UnmarshalJSON(data []byte) error {
	v, err := DecodeValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("workflow document: expected JSON object, got %T", v)
	}
	*d = *DocumentFromObject(obj)
	return nil
}

// MarshalJSON implements json.Marshaler for Document.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Object().MarshalJSON()
}

// MarshalIndent renders the document as the human-readable JSON used for
// persisted snapshot files.
func (d *Document) MarshalIndent() ([]byte, error) {
	return MarshalIndentValue(d.Object())
}

// ParseDocument decodes a workflow document from raw JSON.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
