// Package payload locates and decodes JSON blobs that pages inject into inline
// scripts as `window.<name> = <value>`. Decoded trees keep object key order so
// walkers see entries in document order.
package payload

import (
	"encoding/json"
	"strings"
)

// Value is one node of a decoded tree: Object, Array, String, Number, Bool or Null.
type Value interface {
	isValue()
}

type (
	Object struct{ Members []Member }
	Array  []Value
	String string
	Number json.Number
	Bool   bool
	Null   struct{}
)

type Member struct {
	Key   string
	Value Value
}

func (Object) isValue() {}
func (Array) isValue()  {}
func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (Null) isValue()   {}

// Get returns the value of the last member named key, as encoding/json would.
func (o Object) Get(key string) (Value, bool) {
	for i := len(o.Members) - 1; i >= 0; i-- {
		if o.Members[i].Key == key {
			return o.Members[i].Value, true
		}
	}
	return nil, false
}

// Lookup follows a chain of object keys from v. It reports false as soon as a
// step is missing or lands on a non-object.
func Lookup(v Value, keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		obj, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		if cur, ok = obj.Get(k); !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// LookupString is Lookup narrowed to a trimmed, non-empty string leaf.
func LookupString(v Value, keys ...string) (string, bool) {
	found, ok := Lookup(v, keys...)
	if !ok {
		return "", false
	}
	s, ok := found.(String)
	if !ok || strings.TrimSpace(string(s)) == "" {
		return "", false
	}
	return strings.TrimSpace(string(s)), true
}
