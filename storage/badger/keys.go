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

package badger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

const (
	tableDefPrefix = "tbldef"
	tableRowPrefix = "tblrow"
)

// tableKey hashes a table name into a fixed width key segment so names
// containing ':' cannot collide with each other's row prefixes.
func tableKey(name string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil))
}

// makeTableDefKey generates the key holding a table definition.
// Format: prefix:name
func makeTableDefKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", tableDefPrefix, name))
}

// tableNameFromDefKey extracts the table name from a definition key.
func tableNameFromDefKey(key []byte) string {
	return strings.TrimPrefix(string(key), tableDefPrefix+":")
}

// makeRowPrefix generates the prefix shared by all rows of a table.
// Format: prefix:tablehash:
func makeRowPrefix(table string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", tableRowPrefix, tableKey(table)))
}

// makeRowKey generates the key for a row by id.
// Format: prefix:tablehash:id
func makeRowKey(table, id string) []byte {
	return append(makeRowPrefix(table), id...)
}
