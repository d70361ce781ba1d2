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

package presence

import "hash/fnv"

// palette is the fixed set of collaborator colors. The palette is part of
// the protocol surface: the same user must render the same color on every
// peer without server coordination.
var palette = []string{
	"#F87171", // red
	"#FB923C", // orange
	"#FBBF24", // amber
	"#4ADE80", // green
	"#2DD4BF", // teal
	"#38BDF8", // sky
	"#818CF8", // indigo
	"#C084FC", // purple
	"#F472B6", // pink
	"#A3E635", // lime
}

// ColorFor deterministically maps a stable user ID onto the palette. It
// returns the same color for the same ID across sessions and processes.
func ColorFor(userID string) string {
	hash := fnv.New32a()
	// fnv's Write never returns an error.
	_, _ = hash.Write([]byte(userID))
	return palette[hash.Sum32()%uint32(len(palette))]
}
