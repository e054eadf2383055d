// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import (
	"encoding/binary"
	"reflect"

	"github.com/go-crypt/x/blake2b"
	"gopkg.in/yaml.v3"
)

// Key identifies a function by type name and configuration. Keys of equal
// functions compare equal with ==, so a Key can index a map.
type Key struct {
	Name   string
	Config any
}

// KeyOf returns the identity key of f. Config holds f.Config() when every
// value reachable from it is comparable; otherwise it holds Hash(f), so the
// key stays usable with == and as a map key.
func KeyOf(f Function) Key {
	cfg := f.Config()
	if cfg != nil && !hashable(reflect.ValueOf(cfg)) {
		return Key{Name: f.Name(), Config: Hash(f)}
	}
	return Key{Name: f.Name(), Config: cfg}
}

// Equal reports whether a and b are the same function type built with the
// same configuration.
func Equal(a, b Function) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Name() != b.Name() {
		return false
	}
	ca, cb := a.Config(), b.Config()
	if ca == nil || cb == nil {
		return ca == nil && cb == nil
	}
	if reflect.TypeOf(ca) != reflect.TypeOf(cb) {
		return false
	}
	if !hashable(reflect.ValueOf(ca)) || !hashable(reflect.ValueOf(cb)) {
		return reflect.DeepEqual(ca, cb)
	}
	return ca == cb
}

// hashable reports whether == on v cannot panic. Interface fields are
// checked by their dynamic value.
func hashable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Slice, reflect.Map, reflect.Func:
		return false
	case reflect.Interface:
		return v.IsNil() || hashable(v.Elem())
	case reflect.Array:
		for i := range v.Len() {
			if !hashable(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := range v.NumField() {
			if !hashable(v.Field(i)) {
				return false
			}
		}
		return true
	default:
		return v.Type().Comparable()
	}
}

// Hash returns a 64-bit BLAKE2b digest of f's name and canonical YAML
// configuration. Equal functions hash identically.
func Hash(f Function) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(f.Name()))
	h.Write([]byte{0})
	if cfg := f.Config(); cfg != nil {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			// Unencodable configs still hash by name and type.
			data = []byte(reflect.TypeOf(cfg).String())
		}
		h.Write(data)
	}
	return binary.LittleEndian.Uint64(h.Sum(nil))
}
