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

// Package tecnicofs implements an in-memory, single-process filesystem: a
// fixed-size inode table, a fixed-size data block pool, a flat root
// directory and a fixed-size open-file table, all guarded by the locking
// protocol described alongside each type. It exposes the handful of POSIX-ish
// operations (open, close, read, write, truncate-on-open) that the session
// server in package server dispatches to over a named-pipe wire protocol
// implemented in package wire.
package tecnicofs
