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

// Package eval measures how well an embedding function retrieves the
// relevant document for each query of a QA dataset.
//
// Evaluate indexes the dataset corpus into a fresh table of a vector store,
// runs every query against it and reports per query whether the expected
// document was retrieved:
//
//	results, err := eval.Evaluate(ctx, ds, fn, eval.WithPath("/tmp/eval"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(eval.Summarize(results))
//
// Evaluate does not aggregate. Summarize computes the hit rate, hit at
// rank one and mean reciprocal rank over a result list.
package eval
