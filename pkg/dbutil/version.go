// Copyright 2018 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package dbutil

import (
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/pingcap/errors"
)

const tidbVersionPrefix = "TiDB-v"

// ParseServerVersion extracts a semantic version from the string returned by
// the server, e.g. "8.0.34-0ubuntu0.22.04.1", "5.7.25-TiDB-v7.5.0" or "3.46.0".
// For TiDB the TiDB release is returned instead of the MySQL compatible one.
func ParseServerVersion(version string) (*semver.Version, error) {
	raw := strings.TrimSpace(version)
	if idx := strings.Index(raw, tidbVersionPrefix); idx >= 0 {
		raw = raw[idx+len(tidbVersionPrefix):]
		// keep pre-release tags such as "-alpha" but drop build metadata
		if end := strings.Index(raw, "-g"); end >= 0 {
			raw = raw[:end]
		}
	} else if end := strings.IndexAny(raw, "-+ "); end >= 0 {
		raw = raw[:end]
	}

	// MariaDB and some forks report two components only
	if strings.Count(raw, ".") == 1 {
		raw += ".0"
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, errors.Annotatef(err, "parse server version %q", version)
	}
	return v, nil
}
