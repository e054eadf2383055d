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

package eval

// Monitor receives callbacks at each stage of an evaluation run.
type Monitor interface {
	Start(queries int)
	AfterIndex(rows int)
	AfterQuery(result Result)
	Finish(results []Result)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ int)         {}
func (n *noopMonitor) AfterIndex(_ int)    {}
func (n *noopMonitor) AfterQuery(_ Result) {}
func (n *noopMonitor) Finish(_ []Result)   {}
