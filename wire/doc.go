// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package wire implements the fixed-width framing of request and reply
// packets exchanged between a client and the session server over a pair of
// named pipes. Every integer is fixed-width and little-endian, whatever the
// host's byte order, and every string
// field is a fixed-width, NUL-padded byte array, so that a complete request
// or reply fits into a single atomic pipe write.
package wire
