// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

const (
	// DefaultMaxCallDepth is the default maximum call depth of a block; -1 means that depth limit is ignored
	DefaultMaxCallDepth = -1
	// DefaultDomain is the name of the abstract domain used when none is configured
	DefaultDomain = "interval"
	// DefaultMaxDisjuncts is the default bound on the number of disjuncts of an abstract state
	DefaultMaxDisjuncts = 8
	// DefaultWideningDelay is the default number of joins before widening
	DefaultWideningDelay = 2
	// DefaultSolverMaxCubes is the default bound on the disjunctive normal form of solver queries
	DefaultSolverMaxCubes = 4096
	// SchedulerAsync runs every block worker in its own goroutine with a mailbox
	SchedulerAsync = "async"
	// SchedulerSequential runs the block workers one at a time from a priority queue
	SchedulerSequential = "sequential"
)
