/*
 * Copyright 2025 The Zync Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package version provides the version information of Zync.
package version

var (
	// Version is the value of the release version. It is injected by ldflags.
	Version = "dev"

	// GitCommit is the value of the git commit hash. It is injected by ldflags.
	GitCommit = ""

	// BuildDate is the value of the build date. It is injected by ldflags.
	BuildDate = ""
)
