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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. Fields that are not set keep the value of [NewDefault].
For example, a valid config file is as follows:

	options:
	  log-level: 4
	blocks:
	  function-entries: true
	  cut-functions:
	    - "main\\.helper.*"
	analysis:
	  domain: interval
	  scheduler: sequential
	  widening-delay: 2

# Block options

Loop headers always start a block. The block options only add cuts: at function entries, at return sites,
at explicit node ids, at the entries of functions matching a regex, or where the call depth exceeds a bound.

# Analysis options

The analysis options select the abstract domain by name (see the domain registry), the scheduler of the
block workers, and the precision of the local analyses.
*/
package config
