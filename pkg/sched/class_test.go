// Copyright The NRI Plugins Authors. All Rights Reserved.
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

package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClass struct {
	name   string
	weight int
}

func (c *fakeClass) Name() string             { return c.name }
func (c *fakeClass) Weight() int              { return c.weight }
func (c *fakeClass) Init(rq *RunQueue)        {}
func (c *fakeClass) Pick(rq *RunQueue) *Thread { return nil }
func (c *fakeClass) Enqueue(t *Thread)        {}
func (c *fakeClass) Dequeue(t *Thread)        {}
func (c *fakeClass) Requeue(t *Thread)        {}
func (c *fakeClass) Declare(t *Thread, p Params) error { return nil }
func (c *fakeClass) Forget(t *Thread)                  {}
func (c *fakeClass) SetParam(t *Thread, p Params) error { return nil }
func (c *fakeClass) GetParam(t *Thread) Params          { return nil }
func (c *fakeClass) TrackPrio(t *Thread, p Params)      {}
func (c *fakeClass) Migrate(t *Thread, dst *RunQueue) Class { return nil }

func TestRegistryRejectsOutOfOrderWeights(t *testing.T) {
	var r registry
	require.NoError(t, r.register(&fakeClass{name: "a", weight: 1}))
	require.NoError(t, r.register(&fakeClass{name: "b", weight: 2}))
	require.Error(t, r.register(&fakeClass{name: "c", weight: 2}))
	require.Error(t, r.register(&fakeClass{name: "d", weight: 1}))
}

func TestRegistryByNameLookup(t *testing.T) {
	var r registry
	require.NoError(t, r.register(&fakeClass{name: "a", weight: 1}))
	require.NotNil(t, r.byNameLookup("a"))
	require.Nil(t, r.byNameLookup("missing"))
}

func TestBuiltinClassesRegisteredInAscendingWeightOrder(t *testing.T) {
	var r registry
	for _, c := range builtins {
		require.NoError(t, r.register(c))
	}
	require.Equal(t, "idle", r.byWeight[0].Name())
	require.Equal(t, "rt", r.byWeight[len(r.byWeight)-1].Name())
}
